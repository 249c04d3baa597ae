// Package local implements the provider adapter for the local backend
// family: an Ollama-style chat endpoint on a local address, streamed as
// newline-delimited JSON objects. It requires no credential and is the
// orchestra's guaranteed last resort.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-orchestra/internal/models"
	"ai-orchestra/internal/provider"
)

const contentTypeJSON = "application/json"

// Provider implements the unified call contract for a local model server.
type Provider struct {
	desc    models.Descriptor
	client  *http.Client
	chatURL string
}

// New creates a local provider adapter from its descriptor.
func New(desc models.Descriptor, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if desc.Family != models.FamilyLocal {
		return nil, fmt.Errorf("local adapter received descriptor for family %q", desc.Family)
	}

	baseURL := strings.TrimRight(desc.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("endpoint must not be empty")
	}

	return &Provider{
		desc:    desc,
		client:  client,
		chatURL: baseURL + "/api/chat",
	}, nil
}

func (p *Provider) Name() string {
	return p.desc.ID
}

func (p *Provider) Descriptor() models.Descriptor {
	return p.desc
}

// Available is always true: the local backend needs no credential.
func (p *Provider) Available() bool {
	return true
}

// Chat performs one chat exchange against the local server.
func (p *Provider) Chat(ctx context.Context, req provider.Request) (*models.Envelope, error) {
	if len(req.Turns) == 0 {
		return nil, errors.New("at least one turn is required")
	}

	start := time.Now()
	streaming := req.Stream && p.desc.SupportsStreaming

	payload := chatPayload{
		Model:  p.desc.Model,
		Stream: streaming,
	}
	if req.Model != "" {
		payload.Model = req.Model
	}
	for _, turn := range req.Turns {
		payload.Messages = append(payload.Messages, wireMessage{Role: turn.Role, Content: turn.Content})
	}
	if req.Temperature != 0 {
		payload.Options.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		payload.Options.NumPredict = req.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &provider.TransportError{Provider: p.desc.ID, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		return nil, &provider.TransportError{
			Provider: p.desc.ID,
			Status:   httpResp.StatusCode,
			Err:      errors.New(strings.TrimSpace(string(errBody))),
		}
	}

	if streaming {
		return p.consumeStream(ctx, httpResp.Body, req.Sink, payload.Model, start)
	}
	return p.decodeSingle(httpResp.Body, payload.Model, start)
}

// consumeStream drains the newline-delimited frame sequence, forwarding
// each content delta to the sink in arrival order.
func (p *Provider) consumeStream(ctx context.Context, body io.Reader, sink provider.TokenSink, model string, start time.Time) (*models.Envelope, error) {
	dec := NewDecoder(body)
	var content strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev := dec.Next()
		switch ev.Kind {
		case models.EventToken:
			content.WriteString(ev.Text)
			if sink != nil {
				sink.OnToken(ev.Text)
			}
		case models.EventCompleted:
			// The done frame may carry one last delta.
			if ev.Text != "" {
				content.WriteString(ev.Text)
				if sink != nil {
					sink.OnToken(ev.Text)
				}
			}
			return p.envelope(content.String(), model, ev.Usage, start), nil
		case models.EventFailed:
			return nil, &provider.TransportError{Provider: p.desc.ID, Err: ev.Err}
		}
	}
}

func (p *Provider) decodeSingle(body io.Reader, model string, start time.Time) (*models.Envelope, error) {
	var resp chatFrame
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &provider.TransportError{
			Provider: p.desc.ID,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}

	usage := models.Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	return p.envelope(resp.Message.Content, model, usage, start), nil
}

func (p *Provider) envelope(content, model string, usage models.Usage, start time.Time) *models.Envelope {
	latency := time.Since(start)
	return &models.Envelope{
		Content:   content,
		Provider:  p.desc.ID,
		Model:     model,
		Usage:     usage,
		Latency:   latency,
		LatencyMS: latency.Milliseconds(),
	}
}

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
