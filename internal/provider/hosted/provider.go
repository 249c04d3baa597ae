// Package hosted implements the provider adapter for the hosted backend
// family: chat-completion JSON over HTTPS with a bearer credential,
// streamed as server-sent event frames terminated by a sentinel marker.
package hosted

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

	"golang.org/x/time/rate"

	"ai-orchestra/internal/models"
	"ai-orchestra/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "ai-orchestra/0.1"

	// Client-side throttle per hosted provider, generous enough for
	// interactive use while keeping burst retries below API limits.
	requestsPerSecond = 5
	requestBurst      = 10
)

// Provider implements the unified call contract for hosted backends.
type Provider struct {
	desc    models.Descriptor
	client  *http.Client
	limiter *rate.Limiter
	chatURL string
}

// New creates a hosted provider adapter from its descriptor.
func New(desc models.Descriptor, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if desc.Family != models.FamilyHosted {
		return nil, fmt.Errorf("hosted adapter received descriptor for family %q", desc.Family)
	}

	baseURL := strings.TrimRight(desc.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Provider{
		desc:    desc,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		chatURL: baseURL + "/chat/completions",
	}, nil
}

func (p *Provider) Name() string {
	return p.desc.ID
}

func (p *Provider) Descriptor() models.Descriptor {
	return p.desc
}

func (p *Provider) Available() bool {
	return p.desc.CredentialRef != ""
}

// Chat performs one chat-completion exchange. A missing credential is a
// hard failure raised before any network call.
func (p *Provider) Chat(ctx context.Context, req provider.Request) (*models.Envelope, error) {
	if p.desc.CredentialRef == "" {
		return nil, fmt.Errorf("provider %s: %w", p.desc.ID, provider.ErrMissingCredential)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	streaming := req.Stream && p.desc.SupportsStreaming

	payload, err := buildChatPayload(p.desc, req, streaming)
	if err != nil {
		return nil, err
	}

	httpReq, err := p.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &provider.TransportError{Provider: p.desc.ID, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, &provider.TransportError{
			Provider: p.desc.ID,
			Status:   httpResp.StatusCode,
			Err:      parseAPIError(httpResp),
		}
	}

	if streaming {
		return p.consumeStream(ctx, httpResp.Body, req.Sink, payload.Model, start)
	}
	return p.decodeSingle(httpResp.Body, payload.Model, start)
}

// consumeStream drains the SSE frame sequence, forwarding each text
// delta to the sink in arrival order while accumulating the final
// content.
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
			return p.envelope(content.String(), model, ev.Usage, start), nil
		case models.EventFailed:
			return nil, &provider.TransportError{Provider: p.desc.ID, Err: ev.Err}
		}
	}
}

func (p *Provider) decodeSingle(body io.Reader, model string, start time.Time) (*models.Envelope, error) {
	var resp chatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &provider.TransportError{
			Provider: p.desc.ID,
			Err:      fmt.Errorf("decode provider response: %w", err),
		}
	}
	if len(resp.Choices) == 0 {
		return nil, &provider.TransportError{
			Provider: p.desc.ID,
			Err:      errors.New("response did not include choices"),
		}
	}

	var usage models.Usage
	if resp.Usage != nil {
		usage = models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return p.envelope(resp.Choices[0].Message.Content, model, usage, start), nil
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

func (p *Provider) newRequest(ctx context.Context, payload chatPayload) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+p.desc.CredentialRef)
	return req, nil
}

type chatPayload struct {
	Model         string          `json:"model"`
	Messages      []wireMessage   `json:"messages"`
	Stream        bool            `json:"stream,omitempty"`
	StreamOptions *streamOptions  `json:"stream_options,omitempty"`
	MaxTokens     *int            `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatPayload(desc models.Descriptor, req provider.Request, streaming bool) (chatPayload, error) {
	if len(req.Turns) == 0 {
		return chatPayload{}, errors.New("at least one turn is required")
	}

	messages := make([]wireMessage, 0, len(req.Turns))
	for _, turn := range req.Turns {
		if strings.TrimSpace(turn.Content) == "" {
			return chatPayload{}, errors.New("turn content must not be empty")
		}
		messages = append(messages, wireMessage{Role: turn.Role, Content: turn.Content})
	}

	payload := chatPayload{
		Model:    desc.Model,
		Messages: messages,
		Stream:   streaming,
	}
	if req.Model != "" {
		payload.Model = req.Model
	}
	if streaming {
		payload.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	if req.MaxTokens > 0 {
		v := req.MaxTokens
		payload.MaxTokens = &v
	}
	if req.Temperature != 0 {
		v := req.Temperature
		payload.Temperature = &v
	}
	return payload, nil
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   *usageBlock  `json:"usage,omitempty"`
}

type chatChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read error body: %w", err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%s: %s", apiErr.Error.Type, apiErr.Error.Message)
	}
	return errors.New(strings.TrimSpace(string(body)))
}
