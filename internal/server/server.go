// Package server exposes the orchestrator over HTTP: chat (plain and
// SSE-streamed), classification, provider status, and health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"ai-orchestra/internal/config"
	"ai-orchestra/internal/models"
	"ai-orchestra/internal/orchestrator"
	"ai-orchestra/internal/provider"
)

const (
	version = "0.1.0"

	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	app     *echo.Echo
	log     zerolog.Logger
	address string
	started time.Time
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, orch *orchestrator.Orchestrator, log zerolog.Logger) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Int64("latency_ms", v.Latency.Milliseconds()).
				Err(v.Error).
				Msg("request")
			return nil
		},
	}))

	srv := &Server{
		cfg:     cfg,
		orch:    orch,
		app:     e,
		log:     log.With().Str("component", "server").Logger(),
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		started: time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.address).Str("mode", s.cfg.Orchestrator.Mode).Msg("starting server")

	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		// No write timeout: streamed chat responses are open-ended.
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.log.Info().Msg("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/providers", s.handleProviders)
	s.app.POST("/classify", s.handleClassify)
	s.app.POST("/chat", s.handleChat)
	s.app.POST("/chat/stream", s.handleChatStream)
}

type chatRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []models.Turn `json:"messages"`
	Mode           string        `json:"mode,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	CrossCheck     *bool         `json:"cross_check,omitempty"`
}

func (r chatRequest) validate() error {
	if len(r.Messages) == 0 {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "messages must not be empty",
			Type:    "invalid_request_error",
		}
	}
	for _, m := range r.Messages {
		switch m.Role {
		case models.RoleSystem, models.RoleUser, models.RoleAssistant:
		default:
			return requestError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("unknown message role %q", m.Role),
				Type:    "invalid_request_error",
			}
		}
	}
	if r.Mode != "" && r.Mode != string(models.ModeHosted) && r.Mode != string(models.ModeLocal) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("mode must be %q or %q", models.ModeHosted, models.ModeLocal),
			Type:    "invalid_request_error",
		}
	}
	return nil
}

func (r chatRequest) toOrchestrator(sink provider.TokenSink) orchestrator.Request {
	return orchestrator.Request{
		ConversationID: r.ConversationID,
		Turns:          r.Messages,
		Mode:           models.Mode(r.Mode),
		Provider:       r.Provider,
		CrossCheck:     r.CrossCheck,
		Sink:           sink,
	}
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	envelope, err := s.orch.Orchestrate(c.Request().Context(), req.toOrchestrator(nil))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, envelope)
}

func (s *Server) handleChatStream(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	sink := &sseSink{w: writer, flusher: flusher}
	envelope, err := s.orch.Orchestrate(c.Request().Context(), req.toOrchestrator(sink))
	if err != nil {
		// The status line is already written; failures travel as a
		// terminal error event instead.
		_ = writeSSEEvent(writer, "error", map[string]string{"message": userMessage(err)})
		flusher.Flush()
		return nil
	}

	if err := writeSSEEvent(writer, "done", envelope); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// sseSink relays fragments to the client as they arrive. Reset tells
// the client to discard everything shown so far: a partially streamed
// attempt was abandoned and the next attempt replaces it wholesale.
type sseSink struct {
	w       io.Writer
	flusher http.Flusher
}

func (s *sseSink) OnToken(fragment string) {
	if err := writeSSEEvent(s.w, "token", map[string]string{"token": fragment}); err != nil {
		return
	}
	s.flusher.Flush()
}

func (s *sseSink) Reset() {
	if err := writeSSEEvent(s.w, "reset", struct{}{}); err != nil {
		return
	}
	s.flusher.Flush()
}

type classifyRequest struct {
	Message string `json:"message"`
}

type classifyResponse struct {
	RequestType       models.Label `json:"request_type"`
	SuggestedProvider string       `json:"suggested_provider"`
}

func (s *Server) handleClassify(c echo.Context) error {
	var req classifyRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if req.Message == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "message must not be empty",
			Type:    "invalid_request_error",
		}
	}

	label, suggested := s.orch.Classify(req.Message)
	return c.JSON(http.StatusOK, classifyResponse{
		RequestType:       label,
		SuggestedProvider: suggested,
	})
}

type providerStatus struct {
	Name      string        `json:"name"`
	Family    models.Family `json:"family"`
	Model     string        `json:"model"`
	Available bool          `json:"available"`
}

func (s *Server) handleProviders(c echo.Context) error {
	out := map[string]providerStatus{}
	for _, p := range s.orch.Registry().List() {
		desc := p.Descriptor()
		out[desc.ID] = providerStatus{
			Name:      desc.DisplayName,
			Family:    desc.Family,
			Model:     desc.Model,
			Available: p.Available(),
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"providers": out})
}

func (s *Server) handleHealth(c echo.Context) error {
	availability := map[string]bool{}
	for _, p := range s.orch.Registry().List() {
		availability[p.Name()] = p.Available()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version,
		"mode":           s.cfg.Orchestrator.Mode,
		"providers":      availability,
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	return c.JSON(status, payload)
}

func jsonErrorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = writeError(c, echoErr.Code, fmt.Sprintf("%v", echoErr.Message), "invalid_request_error")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	if errors.Is(err, orchestrator.ErrConversationBusy) {
		return requestError{
			Status:  http.StatusConflict,
			Message: err.Error(),
			Type:    "conversation_busy",
		}
	}

	var exhausted *orchestrator.ExhaustionError
	if errors.As(err, &exhausted) {
		return requestError{
			Status:  http.StatusBadGateway,
			Message: exhausted.Error(),
			Type:    "providers_exhausted",
		}
	}

	if errors.Is(err, provider.ErrUnknownProvider) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}

	return requestError{
		Status:  http.StatusBadGateway,
		Message: "upstream provider error",
		Type:    "upstream_error",
	}
}

// userMessage keeps raw upstream detail out of streamed error events.
func userMessage(err error) string {
	var exhausted *orchestrator.ExhaustionError
	if errors.As(err, &exhausted) {
		return exhausted.Error()
	}
	if errors.Is(err, orchestrator.ErrConversationBusy) {
		return err.Error()
	}
	return "upstream provider error"
}

func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write SSE event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}
