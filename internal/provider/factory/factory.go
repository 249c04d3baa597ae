// Package factory wires configuration and the provider catalog into a
// populated registry.
package factory

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"ai-orchestra/internal/config"
	"ai-orchestra/internal/models"
	"ai-orchestra/internal/provider"
	"ai-orchestra/internal/provider/hosted"
	"ai-orchestra/internal/provider/local"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// RegisterConfiguredProviders constructs every catalogued adapter and
// stores it in the registry. Hosted providers without a credential are
// still registered: they report unavailable, and attempting them raises
// the missing-credential failure before any network call.
func RegisterConfiguredProviders(cfg config.Config, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	for _, entry := range provider.Catalog() {
		var (
			p   provider.Provider
			err error
		)

		switch entry.Family {
		case models.FamilyHosted:
			p, err = hosted.New(hostedDescriptor(entry, cfg), newStreamingHTTPClient())
		case models.FamilyLocal:
			p, err = local.New(localDescriptor(entry, cfg), newStreamingHTTPClient())
		default:
			err = fmt.Errorf("catalog entry %s has unsupported family %q", entry.ID, entry.Family)
		}
		if err != nil {
			return fmt.Errorf("initialise %s provider: %w", entry.ID, err)
		}

		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register %s provider: %w", entry.ID, err)
		}
	}

	return nil
}

func hostedDescriptor(entry provider.CatalogEntry, cfg config.Config) models.Descriptor {
	desc := models.Descriptor{
		ID:                entry.ID,
		DisplayName:       entry.DisplayName,
		Family:            entry.Family,
		BaseURL:           entry.BaseURL,
		Model:             entry.DefaultModel,
		SupportsStreaming: true,
	}

	override, _ := cfg.Hosted(entry.ID)
	if override.BaseURL != "" {
		desc.BaseURL = override.BaseURL
	}
	if override.Model != "" {
		desc.Model = override.Model
	}

	desc.CredentialRef = override.APIKey
	if desc.CredentialRef == "" && entry.CredentialEnv != "" {
		desc.CredentialRef = os.Getenv(entry.CredentialEnv)
	}
	return desc
}

func localDescriptor(entry provider.CatalogEntry, cfg config.Config) models.Descriptor {
	desc := models.Descriptor{
		ID:                entry.ID,
		DisplayName:       entry.DisplayName,
		Family:            entry.Family,
		BaseURL:           entry.BaseURL,
		Model:             entry.DefaultModel,
		SupportsStreaming: true,
	}

	if cfg.Providers.Ollama.Endpoint != "" {
		desc.BaseURL = cfg.Providers.Ollama.Endpoint
	}
	if cfg.Providers.Ollama.Model != "" {
		desc.Model = cfg.Providers.Ollama.Model
	}
	return desc
}

// newStreamingHTTPClient builds a client without an overall request
// timeout: a deadline covering the whole request lifecycle would fire
// while a streamed body is still being read. Per-call bounds are the
// caller's context; the transport bounds connection setup and headers.
func newStreamingHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 2 * time.Minute,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}
