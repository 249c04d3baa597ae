package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ai-orchestra/internal/models"
)

// Defaults applied when the configuration omits a value.
const (
	DefaultPort        = 4000
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Providers    ProvidersConfig    `yaml:"providers"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// OrchestratorConfig drives classification, routing, and verification.
type OrchestratorConfig struct {
	Mode        string   `yaml:"mode"`              // hosted | local
	Primary     string   `yaml:"primary_provider"`  // explicit primary when auto-routing is off
	Fallbacks   []string `yaml:"fallback_providers"`
	AutoRouting *bool    `yaml:"auto_routing"` // nil means enabled
	CrossCheck  bool     `yaml:"cross_check"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// ProvidersConfig catalogues per-provider overrides and credentials.
// A hosted credential left empty is resolved from the provider's
// environment variable at wiring time.
type ProvidersConfig struct {
	Claude   HostedConfig `yaml:"claude"`
	GPT4     HostedConfig `yaml:"gpt4"`
	Grok     HostedConfig `yaml:"grok"`
	Mistral  HostedConfig `yaml:"mistral"`
	DeepSeek HostedConfig `yaml:"deepseek"`
	Ollama   LocalConfig  `yaml:"ollama"`
}

// HostedConfig overrides a hosted provider's catalog defaults.
type HostedConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LocalConfig configures the local model server.
type LocalConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// Default returns the configuration used when no file is supplied:
// local mode against an Ollama default install, auto-routing on.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Orchestrator.Mode == "" {
		c.Orchestrator.Mode = string(models.ModeLocal)
	}
	if c.Orchestrator.Temperature == 0 {
		c.Orchestrator.Temperature = DefaultTemperature
	}
	if c.Orchestrator.MaxTokens == 0 {
		c.Orchestrator.MaxTokens = DefaultMaxTokens
	}
}

// Mode returns the configured operating mode.
func (c Config) Mode() models.Mode {
	return models.Mode(c.Orchestrator.Mode)
}

// AutoRouting reports whether label-based routing is enabled. It
// defaults to on when the configuration is silent.
func (c Config) AutoRouting() bool {
	if c.Orchestrator.AutoRouting == nil {
		return true
	}
	return *c.Orchestrator.AutoRouting
}

// Hosted returns the override block for a hosted provider identifier.
func (c Config) Hosted(id string) (HostedConfig, bool) {
	switch id {
	case models.ProviderClaude:
		return c.Providers.Claude, true
	case models.ProviderGPT4:
		return c.Providers.GPT4, true
	case models.ProviderGrok:
		return c.Providers.Grok, true
	case models.ProviderMistral:
		return c.Providers.Mistral, true
	case models.ProviderDeepSeek:
		return c.Providers.DeepSeek, true
	default:
		return HostedConfig{}, false
	}
}

var knownProviders = map[string]bool{
	models.ProviderClaude:   true,
	models.ProviderGPT4:     true,
	models.ProviderGrok:     true,
	models.ProviderMistral:  true,
	models.ProviderDeepSeek: true,
	models.ProviderOllama:   true,
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	switch models.Mode(c.Orchestrator.Mode) {
	case models.ModeHosted, models.ModeLocal:
	default:
		return fmt.Errorf("orchestrator.mode must be %q or %q, got %q",
			models.ModeHosted, models.ModeLocal, c.Orchestrator.Mode)
	}

	if c.Orchestrator.Primary != "" && !knownProviders[c.Orchestrator.Primary] {
		return fmt.Errorf("orchestrator.primary_provider %q is not a known provider", c.Orchestrator.Primary)
	}
	for _, id := range c.Orchestrator.Fallbacks {
		if !knownProviders[id] {
			return fmt.Errorf("orchestrator.fallback_providers entry %q is not a known provider", id)
		}
	}

	if c.Orchestrator.Temperature < 0 || c.Orchestrator.Temperature > 2 {
		return fmt.Errorf("orchestrator.temperature must be within [0, 2], got %g", c.Orchestrator.Temperature)
	}
	if c.Orchestrator.MaxTokens < 1 {
		return fmt.Errorf("orchestrator.max_tokens must be positive, got %d", c.Orchestrator.MaxTokens)
	}

	return nil
}
