package hosted

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"ai-orchestra/internal/models"
)

const (
	dataPrefix     = "data:"
	streamSentinel = "[DONE]"

	// maxFrameBytes bounds a single SSE frame; anything larger is a
	// broken stream, not a token delta.
	maxFrameBytes = 1 << 20
)

// ErrTruncatedStream indicates the connection ended before the stream's
// completion sentinel arrived.
var ErrTruncatedStream = errors.New("stream ended before completion sentinel")

// Decoder turns the hosted family's server-sent event frames into
// StreamEvents. Frames that are empty, non-data, or unparseable are
// skipped rather than fatal; usage counters and the finish reason are
// retained from whichever frame carries them and attached to the final
// Completed event.
type Decoder struct {
	scanner *bufio.Scanner
	usage   models.Usage
	finish  string
}

// NewDecoder wraps a streamed response body.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &Decoder{scanner: scanner}
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usageBlock `json:"usage,omitempty"`
}

// Next returns the next stream event in arrival order. The sequence
// always terminates with exactly one Completed or Failed event.
func (d *Decoder) Next() models.StreamEvent {
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == streamSentinel {
			return models.StreamEvent{
				Kind:         models.EventCompleted,
				Usage:        d.usage,
				FinishReason: d.finish,
			}
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if chunk.Usage != nil {
			d.usage = models.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if fr := chunk.Choices[0].FinishReason; fr != "" {
			d.finish = fr
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return models.StreamEvent{Kind: models.EventToken, Text: delta}
		}
	}

	if err := d.scanner.Err(); err != nil {
		return models.StreamEvent{Kind: models.EventFailed, Err: err}
	}
	return models.StreamEvent{Kind: models.EventFailed, Err: ErrTruncatedStream}
}
