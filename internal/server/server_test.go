package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-orchestra/internal/config"
	"ai-orchestra/internal/models"
	"ai-orchestra/internal/orchestrator"
	"ai-orchestra/internal/provider"
)

type stubProvider struct {
	id     string
	family models.Family
	reply  string
	fail   bool
}

func (s *stubProvider) Name() string { return s.id }

func (s *stubProvider) Descriptor() models.Descriptor {
	return models.Descriptor{
		ID:                s.id,
		DisplayName:       s.id,
		Family:            s.family,
		Model:             "test-model",
		SupportsStreaming: true,
	}
}

func (s *stubProvider) Available() bool { return true }

func (s *stubProvider) Chat(ctx context.Context, req provider.Request) (*models.Envelope, error) {
	if s.fail {
		return nil, &provider.TransportError{Provider: s.id, Err: errors.New("down")}
	}
	if req.Sink != nil {
		for _, f := range strings.SplitAfter(s.reply, " ") {
			req.Sink.OnToken(f)
		}
	}
	return &models.Envelope{Content: s.reply, Provider: s.id, Model: "test-model"}, nil
}

func newTestServer(t *testing.T, local *stubProvider) *httptest.Server {
	t.Helper()

	registry := provider.NewRegistry()
	require.NoError(t, registry.Register(local))

	cfg := config.Default()
	orch := orchestrator.New(cfg, registry, zerolog.Nop())

	srv, err := New(cfg, orch, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.app)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "ok"})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, string(models.ModeLocal), body["mode"])

	availability, ok := body["providers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, availability[models.ProviderOllama])
}

func TestProvidersEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "ok"})

	resp, err := http.Get(ts.URL + "/providers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	providers, ok := body["providers"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, providers, models.ProviderOllama)
}

func TestClassifyEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "ok"})

	resp := postJSON(t, ts.URL+"/classify", `{"message":"Scrivi una funzione Python per ordinare una lista"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, string(models.LabelCode), body["request_type"])
	assert.Equal(t, models.ProviderClaude, body["suggested_provider"])
}

func TestClassifyRejectsEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "ok"})

	resp := postJSON(t, ts.URL+"/classify", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "ciao dal modello locale"})

	resp := postJSON(t, ts.URL+"/chat", `{"messages":[{"role":"user","content":"ciao"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ciao dal modello locale", body["content"])
	assert.Equal(t, models.ProviderOllama, body["provider"])
	assert.NotEmpty(t, body["id"])
}

func TestChatRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "ok"})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"messages":`},
		{"no messages", `{"messages":[]}`},
		{"unknown role", `{"messages":[{"role":"wizard","content":"hi"}]}`},
		{"unknown mode", `{"messages":[{"role":"user","content":"hi"}],"mode":"cloud"}`},
		{"trailing garbage", `{"messages":[{"role":"user","content":"hi"}]}{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeBody(t, resp)
			require.Contains(t, body, "error")
		})
	}
}

func TestChatExhaustionBecomesBadGateway(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, fail: true})

	resp := postJSON(t, ts.URL+"/chat", `{"messages":[{"role":"user","content":"ciao"}]}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestChatStreamEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubProvider{id: models.ProviderOllama, family: models.FamilyLocal, reply: "uno due tre"})

	resp := postJSON(t, ts.URL+"/chat/stream", `{"messages":[{"role":"user","content":"conta"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	events := string(raw)
	assert.Contains(t, events, "event: token")
	assert.Contains(t, events, `"token":"uno "`)
	assert.Contains(t, events, "event: done")
	assert.Contains(t, events, `"provider":"ollama"`)
}
