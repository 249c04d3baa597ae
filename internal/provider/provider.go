package provider

import (
	"context"
	"errors"
	"fmt"

	"ai-orchestra/internal/models"
)

// ErrUnknownProvider indicates the requested provider is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrDuplicateProvider indicates an attempt to register the same provider twice.
var ErrDuplicateProvider = errors.New("provider already registered")

// ErrMissingCredential indicates a hosted provider has no credential
// configured. It is raised before any network call is attempted and is
// never retried against the same provider.
var ErrMissingCredential = errors.New("missing credential")

// TransportError reports a failed exchange with a backend: a non-success
// status, a malformed response body, or a connection failure. Transport
// errors trigger fallback to the next provider in the preference order.
type TransportError struct {
	Provider string
	Status   int // zero when the failure happened below HTTP
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: upstream status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TokenSink receives incremental text fragments in arrival order while a
// provider call is streaming. Reset tells the consumer to discard every
// fragment delivered so far: the fallback controller fires it when it
// abandons a partially streamed attempt, so presentation layers can
// replace the relay wholesale rather than merge attempts.
type TokenSink interface {
	OnToken(fragment string)
	Reset()
}

// SinkFunc adapts a plain callback into a TokenSink with a no-op Reset.
type SinkFunc func(fragment string)

func (f SinkFunc) OnToken(fragment string) { f(fragment) }

func (f SinkFunc) Reset() {}

// Request is the unified call contract shared by both adapter families.
type Request struct {
	Turns       []models.Turn
	Model       string // override; empty selects the provider's configured model
	Temperature float64
	MaxTokens   int
	Stream      bool
	Sink        TokenSink // may be nil; fragments are then only accumulated
}

// Provider normalizes one backend family's wire protocol into the
// unified call contract. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Descriptor() models.Descriptor

	// Available reports whether the provider can be attempted at all:
	// hosted providers require a resolved credential, local providers
	// are always available.
	Available() bool

	// Chat performs one chat exchange. When req.Stream is set and the
	// backend supports it, req.Sink is invoked once per incoming text
	// fragment, in order, before the call returns.
	Chat(ctx context.Context, req Request) (*models.Envelope, error)
}
