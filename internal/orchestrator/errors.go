package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"ai-orchestra/internal/models"
)

// ErrConversationBusy is returned when a conversation already has an
// orchestration cycle in flight. The coordinator is single-flight per
// conversation; queuing is the caller's concern.
var ErrConversationBusy = errors.New("conversation already has a request in flight")

// ExhaustionError reports that every provider attempt, including the
// mandatory local last resort, failed. It carries the last underlying
// cause and suggests the corrective action for the family that
// exhausted last.
type ExhaustionError struct {
	Mode          models.Mode
	Attempted     []string
	LastFamily    models.Family
	LocalEndpoint string
	Err           error
}

func (e *ExhaustionError) Error() string {
	hint := "verify that a credential is configured for at least one hosted provider"
	if e.LastFamily == models.FamilyLocal {
		hint = fmt.Sprintf("verify the local model server is running at %s (ollama serve)", e.LocalEndpoint)
	}
	return fmt.Sprintf("all providers failed in %s mode (attempted: %s): %v; %s",
		e.Mode, strings.Join(e.Attempted, ", "), e.Err, hint)
}

func (e *ExhaustionError) Unwrap() error {
	return e.Err
}
