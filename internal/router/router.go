// Package router maps a classification label and operating mode to a
// provider preference order. The label table is an enumerated mapping so
// that adding a provider is a single-point, compile-checked change.
package router

import "ai-orchestra/internal/models"

// Route returns the primary provider for a label under the given mode.
// In local mode a single local backend serves everything and routing is
// bypassed.
func Route(label models.Label, mode models.Mode) string {
	if mode == models.ModeLocal {
		return models.ProviderOllama
	}

	switch label {
	case models.LabelCode:
		return models.ProviderClaude
	case models.LabelCreative:
		return models.ProviderGPT4
	case models.LabelAnalysis:
		return models.ProviderClaude
	case models.LabelRealtime:
		return models.ProviderGrok
	case models.LabelReasoning:
		return models.ProviderClaude
	case models.LabelConversation:
		return models.ProviderClaude
	default:
		return models.ProviderClaude
	}
}

// FallbackOrder returns the configured fallback list with the local
// provider appended as the unconditional final entry. This guarantees
// every request ends at a backend that needs no network credential.
func FallbackOrder(mode models.Mode, configured []string) []string {
	if mode == models.ModeLocal {
		return []string{models.ProviderOllama}
	}

	order := make([]string, 0, len(configured)+1)
	order = append(order, configured...)

	if len(order) == 0 || order[len(order)-1] != models.ProviderOllama {
		order = append(order, models.ProviderOllama)
	}
	return order
}
