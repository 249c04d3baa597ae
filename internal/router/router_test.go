package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-orchestra/internal/models"
)

func TestRouteLocalModeBypassesLabels(t *testing.T) {
	for _, label := range []models.Label{
		models.LabelCode, models.LabelCreative, models.LabelAnalysis,
		models.LabelRealtime, models.LabelReasoning, models.LabelConversation,
	} {
		assert.Equal(t, models.ProviderOllama, Route(label, models.ModeLocal), "label %s", label)
	}
}

func TestRouteHostedMode(t *testing.T) {
	tests := []struct {
		label models.Label
		want  string
	}{
		{models.LabelCode, models.ProviderClaude},
		{models.LabelCreative, models.ProviderGPT4},
		{models.LabelAnalysis, models.ProviderClaude},
		{models.LabelRealtime, models.ProviderGrok},
		{models.LabelReasoning, models.ProviderClaude},
		{models.LabelConversation, models.ProviderClaude},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Route(tt.label, models.ModeHosted), "label %s", tt.label)
	}
}

func TestFallbackOrderAppendsLocal(t *testing.T) {
	order := FallbackOrder(models.ModeHosted, []string{models.ProviderGPT4, models.ProviderMistral})
	assert.Equal(t, []string{models.ProviderGPT4, models.ProviderMistral, models.ProviderOllama}, order)
}

func TestFallbackOrderKeepsTrailingLocal(t *testing.T) {
	order := FallbackOrder(models.ModeHosted, []string{models.ProviderGPT4, models.ProviderOllama})
	assert.Equal(t, []string{models.ProviderGPT4, models.ProviderOllama}, order)
}

// The local provider is the unconditional final attempt even when it
// already appears earlier in the configured list.
func TestFallbackOrderRepeatsMidListLocal(t *testing.T) {
	order := FallbackOrder(models.ModeHosted, []string{models.ProviderOllama, models.ProviderGPT4})
	assert.Equal(t, []string{models.ProviderOllama, models.ProviderGPT4, models.ProviderOllama}, order)
}

func TestFallbackOrderEmptyConfiguration(t *testing.T) {
	assert.Equal(t, []string{models.ProviderOllama}, FallbackOrder(models.ModeHosted, nil))
}

func TestFallbackOrderLocalMode(t *testing.T) {
	order := FallbackOrder(models.ModeLocal, []string{models.ProviderGPT4})
	assert.Equal(t, []string{models.ProviderOllama}, order)
}
