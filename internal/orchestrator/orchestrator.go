// Package orchestrator drives one conversational request through
// classification, routing, fallback-controlled streaming, and optional
// cross-check verification, producing a single annotated envelope.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-orchestra/internal/classifier"
	"ai-orchestra/internal/config"
	"ai-orchestra/internal/models"
	"ai-orchestra/internal/prompts"
	"ai-orchestra/internal/provider"
	"ai-orchestra/internal/router"
)

// Orchestrator owns at most one in-flight cycle per conversation.
// Distinct conversations may run concurrently; the orchestrator shares
// no mutable state between cycles beyond the in-flight set.
type Orchestrator struct {
	cfg      config.Config
	registry *provider.Registry
	log      zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New constructs an orchestrator over a populated provider registry.
func New(cfg config.Config, registry *provider.Registry, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		log:      log.With().Str("component", "orchestrator").Logger(),
		inflight: make(map[string]struct{}),
	}
}

// Request describes one orchestration cycle. Zero-valued fields fall
// back to the orchestrator's configuration.
type Request struct {
	ConversationID string
	Turns          []models.Turn
	Mode           models.Mode
	Provider       string // explicit primary, honored when auto-routing is off
	CrossCheck     *bool
	Sink           provider.TokenSink
}

// Registry exposes the provider registry for status reporting.
func (o *Orchestrator) Registry() *provider.Registry {
	return o.registry
}

// Classify returns the routing label and suggested hosted provider for
// a message, without performing a call.
func (o *Orchestrator) Classify(message string) (models.Label, string) {
	label := classifier.Classify(message)
	return label, router.Route(label, models.ModeHosted)
}

// Orchestrate runs one full cycle: classify, route, attempt providers
// in order while relaying fragments to the sink, then optionally
// cross-check. Exactly one provider is credited in the returned
// envelope regardless of how many were attempted.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) (*models.Envelope, error) {
	if len(req.Turns) == 0 {
		return nil, errors.New("at least one turn is required")
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if !o.acquire(conversationID) {
		return nil, ErrConversationBusy
	}
	defer o.release(conversationID)

	mode := req.Mode
	if mode == "" {
		mode = o.cfg.Mode()
	}

	label := models.LabelConversation
	if o.cfg.AutoRouting() {
		label = classifier.Classify(lastUserContent(req.Turns))
	}

	decision := o.decide(label, mode, req.Provider)
	o.log.Debug().
		Str("conversation", conversationID).
		Str("label", string(decision.Label)).
		Str("primary", decision.Primary).
		Strs("fallbacks", decision.FallbackOrder).
		Msg("routing decision")

	preq := provider.Request{
		Turns:       withSystemPrompt(req.Turns, label),
		Temperature: o.cfg.Orchestrator.Temperature,
		MaxTokens:   o.cfg.Orchestrator.MaxTokens,
		Stream:      req.Sink != nil,
		Sink:        req.Sink,
	}

	envelope, err := o.runAttempts(ctx, mode, attemptOrder(decision), preq)
	if err != nil {
		return nil, err
	}

	envelope.ID = uuid.NewString()
	envelope.RequestType = label

	if o.crossCheckEnabled(req.CrossCheck) && mode == models.ModeHosted && len(o.cfg.Orchestrator.Fallbacks) > 0 {
		if verifier := o.selectVerifier(o.cfg.Orchestrator.Fallbacks, envelope.Provider); verifier != nil {
			result, err := o.crossCheck(ctx, req.Turns, envelope.Content, verifier)
			if err != nil {
				// Verification is an enhancement, not a requirement:
				// the primary response is returned unannotated.
				o.log.Warn().Err(err).Str("verifier", verifier.Name()).Msg("cross-check failed")
			} else {
				envelope.CrossCheck = result
			}
		}
	}

	return envelope, nil
}

// decide produces the cycle's routing decision. In local mode the local
// provider is always primary; with auto-routing off the caller's
// explicit provider overrides the label-based choice.
func (o *Orchestrator) decide(label models.Label, mode models.Mode, explicit string) models.RoutingDecision {
	primary := router.Route(label, mode)
	if mode != models.ModeLocal && !o.cfg.AutoRouting() {
		switch {
		case explicit != "":
			primary = explicit
		case o.cfg.Orchestrator.Primary != "":
			primary = o.cfg.Orchestrator.Primary
		}
	}

	return models.RoutingDecision{
		Label:         label,
		Primary:       primary,
		FallbackOrder: router.FallbackOrder(mode, o.cfg.Orchestrator.Fallbacks),
	}
}

// attemptOrder flattens a routing decision into the effective attempt
// sequence: primary first, then fallbacks, always terminating with the
// local provider. Back-to-back repeats of the same provider collapse.
func attemptOrder(decision models.RoutingDecision) []string {
	order := []string{decision.Primary}
	for _, id := range decision.FallbackOrder {
		if id == order[len(order)-1] {
			continue
		}
		order = append(order, id)
	}
	return order
}

func (o *Orchestrator) crossCheckEnabled(override *bool) bool {
	if override != nil {
		return *override
	}
	return o.cfg.Orchestrator.CrossCheck
}

func (o *Orchestrator) acquire(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[conversationID]; busy {
		return false
	}
	o.inflight[conversationID] = struct{}{}
	return true
}

func (o *Orchestrator) release(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, conversationID)
}

// withSystemPrompt prepends the label-specialized system prompt unless
// the caller already supplied a system turn.
func withSystemPrompt(turns []models.Turn, label models.Label) []models.Turn {
	for _, turn := range turns {
		if turn.Role == models.RoleSystem {
			return turns
		}
	}

	out := make([]models.Turn, 0, len(turns)+1)
	out = append(out, models.Turn{Role: models.RoleSystem, Content: prompts.Build(label)})
	return append(out, turns...)
}

// lastUserContent returns the most recent user turn, falling back to
// the final turn when the caller sent none.
func lastUserContent(turns []models.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleUser {
			return turns[i].Content
		}
	}
	return turns[len(turns)-1].Content
}
