package orchestrator

import (
	"context"

	"ai-orchestra/internal/models"
	"ai-orchestra/internal/provider"
)

// attemptSink scopes the caller's token relay to a single attempt. It
// forwards fragments live and records whether anything was forwarded,
// so the controller can fire Reset when abandoning a partially streamed
// attempt: the relay is replaced wholesale by the next attempt, never
// merged.
type attemptSink struct {
	inner   provider.TokenSink
	relayed bool
}

func (s *attemptSink) OnToken(fragment string) {
	s.relayed = true
	if s.inner != nil {
		s.inner.OnToken(fragment)
	}
}

func (s *attemptSink) Reset() {}

// runAttempts drives sequential provider attempts until one streams
// successfully or the order, which always terminates with the local
// provider, is exhausted. Attempts are strictly sequential: a successor
// starts only after its predecessor definitively failed.
func (o *Orchestrator) runAttempts(ctx context.Context, mode models.Mode, order []string, req provider.Request) (*models.Envelope, error) {
	if mode == models.ModeHosted && !o.anyHostedAvailable(order) {
		// Hosted mode with zero usable credentials: demote to the local
		// provider as the first and only attempt for this call. The
		// persisted configuration is untouched.
		o.log.Info().Msg("no hosted credential configured, demoting to local provider for this call")
		order = []string{models.ProviderOllama}
	}

	callerSink := req.Sink
	var lastErr error
	var lastFamily models.Family

	for i, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := o.registry.Lookup(id)
		if err != nil {
			lastErr = err
			o.log.Warn().Str("provider", id).Int("attempt", i).Err(err).Msg("skipping unknown provider")
			continue
		}

		sink := &attemptSink{inner: callerSink}
		attemptReq := req
		attemptReq.Sink = sink

		envelope, err := p.Chat(ctx, attemptReq)
		if err == nil {
			o.log.Debug().Str("provider", id).Int("attempt", i).Msg("attempt succeeded")
			return envelope, nil
		}

		// No retry after explicit cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if sink.relayed && callerSink != nil {
			callerSink.Reset()
		}

		lastErr = err
		lastFamily = p.Descriptor().Family
		o.log.Warn().Str("provider", id).Int("attempt", i).Err(err).Msg("provider attempt failed")
	}

	return nil, &ExhaustionError{
		Mode:          mode,
		Attempted:     order,
		LastFamily:    lastFamily,
		LocalEndpoint: o.localEndpoint(),
		Err:           lastErr,
	}
}

// anyHostedAvailable reports whether any hosted provider in the attempt
// order has a resolved credential.
func (o *Orchestrator) anyHostedAvailable(order []string) bool {
	for _, id := range order {
		p, err := o.registry.Lookup(id)
		if err != nil {
			continue
		}
		if p.Descriptor().Family == models.FamilyHosted && p.Available() {
			return true
		}
	}
	return false
}

func (o *Orchestrator) localEndpoint() string {
	p, err := o.registry.Lookup(models.ProviderOllama)
	if err != nil {
		return ""
	}
	return p.Descriptor().BaseURL
}
