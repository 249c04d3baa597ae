package hosted

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-orchestra/internal/models"
)

func TestDecoderEmitsTokensInOrder(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"delta":{"content":" world"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
		`data: [DONE]`,
	}, "\n")

	dec := NewDecoder(strings.NewReader(body))

	ev := dec.Next()
	require.Equal(t, models.EventToken, ev.Kind)
	assert.Equal(t, "Hello", ev.Text)

	ev = dec.Next()
	require.Equal(t, models.EventToken, ev.Kind)
	assert.Equal(t, " world", ev.Text)

	ev = dec.Next()
	require.Equal(t, models.EventCompleted, ev.Kind)
	assert.Equal(t, "stop", ev.FinishReason)
	assert.Equal(t, 5, ev.Usage.TotalTokens)
}

func TestDecoderSkipsMalformedAndNonDataFrames(t *testing.T) {
	body := strings.Join([]string{
		``,
		`: keep-alive comment`,
		`data: {not valid json`,
		`event: ping`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}, "\n")

	dec := NewDecoder(strings.NewReader(body))

	ev := dec.Next()
	require.Equal(t, models.EventToken, ev.Kind)
	assert.Equal(t, "ok", ev.Text)

	ev = dec.Next()
	assert.Equal(t, models.EventCompleted, ev.Kind)
}

func TestDecoderTruncatedStream(t *testing.T) {
	body := `data: {"choices":[{"delta":{"content":"partial"}}]}` + "\n"

	dec := NewDecoder(strings.NewReader(body))

	ev := dec.Next()
	require.Equal(t, models.EventToken, ev.Kind)

	ev = dec.Next()
	require.Equal(t, models.EventFailed, ev.Kind)
	assert.ErrorIs(t, ev.Err, ErrTruncatedStream)
}

func TestDecoderEmptyDeltaIsNotAToken(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: [DONE]`,
	}, "\n")

	dec := NewDecoder(strings.NewReader(body))
	assert.Equal(t, models.EventCompleted, dec.Next().Kind)
}
