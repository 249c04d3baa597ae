package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-orchestra/internal/models"
	"ai-orchestra/internal/provider"
)

func testDescriptor(baseURL string) models.Descriptor {
	return models.Descriptor{
		ID:                models.ProviderOllama,
		DisplayName:       "Ollama",
		Family:            models.FamilyLocal,
		BaseURL:           baseURL,
		Model:             "qwen2.5-coder:3b",
		SupportsStreaming: true,
	}
}

type collectSink struct {
	tokens []string
}

func (s *collectSink) OnToken(fragment string) { s.tokens = append(s.tokens, fragment) }
func (s *collectSink) Reset()                  {}

func TestAvailableNeedsNoCredential(t *testing.T) {
	p, err := New(testDescriptor("http://localhost:11434"), http.DefaultClient)
	require.NoError(t, err)
	assert.True(t, p.Available())
}

func TestChatStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["stream"])
		assert.Equal(t, "qwen2.5-coder:3b", payload["model"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"content":"Buon"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"giorno"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"!"},"done":true,"prompt_eval_count":5,"eval_count":3}`)
	}))
	defer server.Close()

	p, err := New(testDescriptor(server.URL), server.Client())
	require.NoError(t, err)

	sink := &collectSink{}
	envelope, err := p.Chat(context.Background(), provider.Request{
		Turns:  []models.Turn{{Role: models.RoleUser, Content: "saluta"}},
		Stream: true,
		Sink:   sink,
	})
	require.NoError(t, err)

	assert.Equal(t, "Buongiorno!", envelope.Content)
	assert.Equal(t, []string{"Buon", "giorno", "!"}, sink.tokens)
	assert.Equal(t, models.ProviderOllama, envelope.Provider)
	assert.Equal(t, 8, envelope.Usage.TotalTokens)
}

func TestChatNonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, false, payload["stream"])

		fmt.Fprintln(w, `{"message":{"content":"answer"},"done":true,"prompt_eval_count":2,"eval_count":2}`)
	}))
	defer server.Close()

	p, err := New(testDescriptor(server.URL), server.Client())
	require.NoError(t, err)

	envelope, err := p.Chat(context.Background(), provider.Request{
		Turns: []models.Turn{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", envelope.Content)
	assert.Equal(t, 4, envelope.Usage.TotalTokens)
}

func TestChatServerDownBecomesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p, err := New(testDescriptor(server.URL), http.DefaultClient)
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), provider.Request{
		Turns: []models.Turn{{Role: models.RoleUser, Content: "hi"}},
	})

	var transportErr *provider.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, models.ProviderOllama, transportErr.Provider)
}

func TestChatUpstreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model not found"}`)
	}))
	defer server.Close()

	p, err := New(testDescriptor(server.URL), server.Client())
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), provider.Request{
		Turns: []models.Turn{{Role: models.RoleUser, Content: "hi"}},
	})

	var transportErr *provider.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusNotFound, transportErr.Status)
}
