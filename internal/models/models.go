package models

import "time"

// Conversation roles in the unified schema.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents a single conversational turn in the unified schema.
// Turns are immutable once created; their slice order is their sequence
// position.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Label classifies a request for routing purposes.
type Label string

// The closed label set produced by classification.
const (
	LabelCode         Label = "code"
	LabelCreative     Label = "creative"
	LabelAnalysis     Label = "analysis"
	LabelRealtime     Label = "realtime"
	LabelReasoning    Label = "reasoning"
	LabelConversation Label = "conversation"
)

// Mode selects between hosted and local operation.
type Mode string

const (
	ModeHosted Mode = "hosted"
	ModeLocal  Mode = "local"
)

// Family identifies a provider's backend family, which determines its
// wire protocol.
type Family string

const (
	FamilyHosted Family = "hosted"
	FamilyLocal  Family = "local"
)

// Known provider identifiers. Adding a provider means adding a constant
// here and a catalog entry; everything else is compile-checked.
const (
	ProviderClaude   = "claude"
	ProviderGPT4     = "gpt4"
	ProviderGrok     = "grok"
	ProviderMistral  = "mistral"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)

// Descriptor identifies a configured backend. CredentialRef is an opaque
// resolved credential and must never be logged.
type Descriptor struct {
	ID                string `json:"id"`
	DisplayName       string `json:"name"`
	Family            Family `json:"family"`
	BaseURL           string `json:"-"`
	Model             string `json:"model"`
	CredentialRef     string `json:"-"`
	SupportsStreaming bool   `json:"supports_streaming"`
}

// RoutingDecision records one cycle's provider choice. Created fresh per
// request, never persisted.
type RoutingDecision struct {
	Label         Label
	Primary       string
	FallbackOrder []string
}

// EventKind discriminates StreamEvent variants.
type EventKind int

const (
	// EventToken carries one incremental text fragment.
	EventToken EventKind = iota
	// EventCompleted terminates a stream with final metadata.
	EventCompleted
	// EventFailed terminates a stream with an error.
	EventFailed
)

// StreamEvent is one decoded unit of a streamed provider response,
// produced in strict arrival order and consumed exactly once.
type StreamEvent struct {
	Kind         EventKind
	Text         string
	Usage        Usage
	FinishReason string
	Err          error
}

// Usage records token accounting reported by a backend. Zero when the
// backend reports no counters.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CrossCheckResult is the verdict of a secondary verification call.
// Its absence on an Envelope means "not attempted", not "failed".
type CrossCheckResult struct {
	Concordant bool   `json:"concordance"`
	Provider   string `json:"provider"`
	Verdict    string `json:"verdict"`
}

// Envelope is the terminal artifact of one orchestration cycle. Exactly
// one provider is credited as the source of the content even when
// several were attempted.
type Envelope struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	Usage       Usage             `json:"usage"`
	Latency     time.Duration     `json:"-"`
	LatencyMS   int64             `json:"latency_ms"`
	RequestType Label             `json:"request_type,omitempty"`
	CrossCheck  *CrossCheckResult `json:"cross_check,omitempty"`
}
