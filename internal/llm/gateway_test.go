package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// scriptedCompleter answers per model and records every call.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies map[string]func(ctx context.Context) (string, error)
	calls   []CompletionRequest
}

func (s *scriptedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	reply := s.replies[req.Model]
	s.mu.Unlock()
	if reply == nil {
		return "", fmt.Errorf("%w: unknown model %s", common.ErrTransport, req.Model)
	}
	return reply(ctx)
}

func (s *scriptedCompleter) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Model)
	}
	return out
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func baseRequest(models ...string) TransformRequest {
	return TransformRequest{
		Text:           "chunk body",
		Models:         models,
		Credential:     "key",
		SystemPrompt:   "system",
		PromptTemplate: "before {TEXT_CHUNK} after",
		Temperature:    0.2,
		MaxTokens:      64,
	}
}

func TestTransform_FallsBackInOrderAndStopsAtFirstSuccess(t *testing.T) {
	c := &scriptedCompleter{replies: map[string]func(context.Context) (string, error){
		"A": fail(&StatusError{Status: 500}),
		"B": fail(fmt.Errorf("%w: blocked", common.ErrEmptyResponse)),
		"C": reply("spoken"),
		"D": reply("never"),
	}}
	g := NewGateway(c, nil)

	res, err := g.Transform(context.Background(), baseRequest("A", "B", "C", "D"))
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "spoken", Model: "C"}, res)
	assert.Equal(t, []string{"A", "B", "C"}, c.models())

	for _, call := range c.calls {
		assert.Equal(t, "before chunk body after", call.UserPrompt)
		assert.Equal(t, "system", call.SystemPrompt)
		assert.Equal(t, "key", call.Credential)
		assert.Equal(t, float32(0.2), call.Temperature)
		assert.Equal(t, 64, call.MaxTokens)
	}
}

func TestTransform_EmptyTextIsAFailure(t *testing.T) {
	c := &scriptedCompleter{replies: map[string]func(context.Context) (string, error){
		"A": reply("   \n"),
		"B": reply("ok"),
	}}

	res, err := NewGateway(c, nil).Transform(context.Background(), baseRequest("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, "B", res.Model)
}

func TestTransform_ExhaustedTriesEachModelOnce(t *testing.T) {
	c := &scriptedCompleter{replies: map[string]func(context.Context) (string, error){
		"A": fail(common.ErrTransport),
		"B": fail(common.ErrTransport),
	}}

	_, err := NewGateway(c, nil).Transform(context.Background(), baseRequest("A", "B"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAllModelsExhausted)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, []string{"A", "B"}, c.models())

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Len(t, ex.Failures, 2)
	assert.Equal(t, "B", ex.Failures[1].Model)
}

func TestTransform_TimeoutFallsThrough(t *testing.T) {
	c := &scriptedCompleter{replies: map[string]func(context.Context) (string, error){
		"slow": func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		"fast": reply("done"),
	}}
	g := NewGateway(c, nil, WithRequestTimeout(20*time.Millisecond))

	res, err := g.Transform(context.Background(), baseRequest("slow", "fast"))
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Model)
}

func TestTransform_ConfigurationErrorsMakeNoRequests(t *testing.T) {
	c := &scriptedCompleter{}
	g := NewGateway(c, nil)

	_, err := g.Transform(context.Background(), baseRequest())
	assert.ErrorIs(t, err, common.ErrConfiguration)

	req := baseRequest("A")
	req.Credential = " "
	_, err = g.Transform(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.False(t, common.IsRetryable(err))

	assert.Empty(t, c.models())
}

func TestTransform_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &scriptedCompleter{replies: map[string]func(context.Context) (string, error){
		"A": func(context.Context) (string, error) {
			cancel()
			return "", context.Canceled
		},
		"B": reply("unreachable"),
	}}

	_, err := NewGateway(c, nil).Transform(ctx, baseRequest("A", "B"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A"}, c.models())
}

func TestRenderPrompt(t *testing.T) {
	assert.Equal(t, "a X b {TEXT_CHUNK}", RenderPrompt("a {TEXT_CHUNK} b {TEXT_CHUNK}", "X"))
	assert.Equal(t, "Rewrite:\n\nX", RenderPrompt("Rewrite:\n", "X"))
	assert.Equal(t, "X", RenderPrompt("", "X"))
}

func TestResolveCredential(t *testing.T) {
	key, err := ResolveCredential("", "  ", "primary", "secondary")
	require.NoError(t, err)
	assert.Equal(t, "primary", key)

	_, err = ResolveCredential("", " ")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
