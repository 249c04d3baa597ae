package local

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"ai-orchestra/internal/models"
)

// maxFrameBytes bounds a single NDJSON frame.
const maxFrameBytes = 1 << 20

// ErrTruncatedStream indicates the connection ended before the terminal
// done frame arrived.
var ErrTruncatedStream = errors.New("stream ended before done frame")

// Decoder turns the local family's newline-delimited JSON frames into
// StreamEvents. Each frame carries an incremental content delta; the
// terminal frame sets done and carries cumulative token-usage counters.
// Malformed lines are skipped, not fatal.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps a streamed response body.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &Decoder{scanner: scanner}
}

type chatFrame struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// Next returns the next stream event in arrival order. The sequence
// always terminates with exactly one Completed or Failed event.
func (d *Decoder) Next() models.StreamEvent {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame chatFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			continue
		}

		if frame.Done {
			return models.StreamEvent{
				Kind: models.EventCompleted,
				Text: frame.Message.Content,
				Usage: models.Usage{
					PromptTokens:     frame.PromptEvalCount,
					CompletionTokens: frame.EvalCount,
					TotalTokens:      frame.PromptEvalCount + frame.EvalCount,
				},
				FinishReason: "stop",
			}
		}
		if frame.Message.Content != "" {
			return models.StreamEvent{Kind: models.EventToken, Text: frame.Message.Content}
		}
	}

	if err := d.scanner.Err(); err != nil {
		return models.StreamEvent{Kind: models.EventFailed, Err: err}
	}
	return models.StreamEvent{Kind: models.EventFailed, Err: ErrTruncatedStream}
}
