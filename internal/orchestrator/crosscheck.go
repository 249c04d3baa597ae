package orchestrator

import (
	"context"
	"strings"

	"ai-orchestra/internal/models"
	"ai-orchestra/internal/provider"
)

// ConfirmationToken is the exact reply the verifier is instructed to
// give when it judges the candidate answer correct.
const ConfirmationToken = "CONFERMATO"

const verifierMaxTokens = 500

const verificationInstruction = "Verifica se la risposta precedente è accurata e corretta. " +
	"Se è corretta, rispondi SOLO con 'CONFERMATO' sulla prima riga, senza altro testo su quella riga. " +
	"Altrimenti spiega brevemente gli errori trovati."

// Concordant reports whether a verifier verdict confirms the candidate
// answer. The confirmation token must be the sole content of the
// verdict's first non-empty line; a token merely quoted inside a longer
// sentence, a partial answer, or a hedge is discordant.
func Concordant(verdict string) bool {
	for _, line := range strings.Split(verdict, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Trim(line, ".!'\"“”‘’*")
		return strings.EqualFold(line, ConfirmationToken)
	}
	return false
}

// crossCheck asks an alternate provider to verify the candidate answer.
// The conversation context is replayed with the answer appended as an
// assistant turn, followed by the fixed verification instruction.
func (o *Orchestrator) crossCheck(ctx context.Context, turns []models.Turn, answer string, verifier provider.Provider) (*models.CrossCheckResult, error) {
	check := make([]models.Turn, 0, len(turns)+2)
	check = append(check, turns...)
	check = append(check,
		models.Turn{Role: models.RoleAssistant, Content: answer},
		models.Turn{Role: models.RoleUser, Content: verificationInstruction},
	)

	envelope, err := verifier.Chat(ctx, provider.Request{
		Turns:     check,
		MaxTokens: verifierMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &models.CrossCheckResult{
		Concordant: Concordant(envelope.Content),
		Provider:   verifier.Name(),
		Verdict:    envelope.Content,
	}, nil
}

// selectVerifier picks the first configured fallback that is hosted and
// distinct from the provider that produced the answer.
func (o *Orchestrator) selectVerifier(fallbacks []string, usedProvider string) provider.Provider {
	for _, id := range fallbacks {
		if id == usedProvider {
			continue
		}
		p, err := o.registry.Lookup(id)
		if err != nil || p.Descriptor().Family != models.FamilyHosted {
			continue
		}
		return p
	}
	return nil
}
