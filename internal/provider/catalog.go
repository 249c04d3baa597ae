package provider

import (
	"fmt"

	"ai-orchestra/internal/models"
)

// CatalogEntry describes a known backend: its endpoint, default model,
// and the environment variable its credential is resolved from.
type CatalogEntry struct {
	ID            string
	DisplayName   string
	Family        models.Family
	BaseURL       string
	DefaultModel  string
	CredentialEnv string
}

// catalog enumerates every supported backend. Adding a provider is a
// single-point change here plus an identifier constant in models.
var catalog = []CatalogEntry{
	{
		ID:            models.ProviderClaude,
		DisplayName:   "Anthropic Claude",
		Family:        models.FamilyHosted,
		BaseURL:       "https://api.anthropic.com/v1",
		DefaultModel:  "claude-sonnet-4-20250514",
		CredentialEnv: "ANTHROPIC_API_KEY",
	},
	{
		ID:            models.ProviderGPT4,
		DisplayName:   "OpenAI GPT-4",
		Family:        models.FamilyHosted,
		BaseURL:       "https://api.openai.com/v1",
		DefaultModel:  "gpt-4o",
		CredentialEnv: "OPENAI_API_KEY",
	},
	{
		ID:            models.ProviderGrok,
		DisplayName:   "xAI Grok",
		Family:        models.FamilyHosted,
		BaseURL:       "https://api.x.ai/v1",
		DefaultModel:  "grok-2",
		CredentialEnv: "XAI_API_KEY",
	},
	{
		ID:            models.ProviderMistral,
		DisplayName:   "Mistral AI",
		Family:        models.FamilyHosted,
		BaseURL:       "https://api.mistral.ai/v1",
		DefaultModel:  "mistral-large-latest",
		CredentialEnv: "MISTRAL_API_KEY",
	},
	{
		ID:            models.ProviderDeepSeek,
		DisplayName:   "DeepSeek",
		Family:        models.FamilyHosted,
		BaseURL:       "https://api.deepseek.com/v1",
		DefaultModel:  "deepseek-chat",
		CredentialEnv: "DEEPSEEK_API_KEY",
	},
	{
		ID:           models.ProviderOllama,
		DisplayName:  "Ollama (locale)",
		Family:       models.FamilyLocal,
		BaseURL:      "http://localhost:11434",
		DefaultModel: "qwen2.5-coder:3b",
	},
}

// Catalog returns all known backend entries, hosted first.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// CatalogLookup returns the catalog entry for a provider identifier.
func CatalogLookup(id string) (CatalogEntry, error) {
	for _, entry := range catalog {
		if entry.ID == id {
			return entry, nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
}
