package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/assemble"
	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/extract"
	"github.com/joseph-ayodele/cogniflow/internal/llm"
	"github.com/joseph-ayodele/cogniflow/internal/repository"
	"github.com/joseph-ayodele/cogniflow/internal/settings"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(_ context.Context, _ []byte, onPage extract.ProgressFunc) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{}, f.err
	}
	onPage(1, 2)
	onPage(2, 2)
	return extract.Result{Text: f.text, Pages: 2, Method: "fake"}, nil
}

// echoCompleter answers "T:<prompt>" and fails models listed in down.
type echoCompleter struct {
	mu    sync.Mutex
	down  map[string]bool
	calls int
}

func (e *echoCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.down[req.Model] {
		return "", common.ErrTransport
	}
	return "T:" + req.UserPrompt, nil
}

type textRenderer struct{}

func (textRenderer) Render(text string, _ assemble.Style) ([]byte, error) { return []byte(text), nil }

func testSettings() settings.Settings {
	s := settings.Defaults()
	s.ModelPriority = []string{"primary", "backup"}
	s.BatchSize = 10 // 40 runes
	s.OverlapSize = 2
	s.TurboMode = false
	s.MaxRetries = 0
	s.RetryDelay = 0
	s.TextTransformPrompt = llm.ChunkPlaceholder
	return s
}

func newTestProcessor(t *testing.T, repo repository.Store, ex extract.TextExtractor, c llm.Completer, opts ...Option) *Processor {
	t.Helper()
	base := []Option{WithModelSwitchDelay(0), WithAPIKey("test-key")}
	p := NewProcessor(nil, repo, ex, c, textRenderer{}, append(base, opts...)...)
	return p
}

func TestProcessor_EndToEnd(t *testing.T) {
	repo := repository.NewMemoryStore()
	comp := &echoCompleter{down: map[string]bool{"primary": true}}
	p := newTestProcessor(t, repo, fakeExtractor{text: strings.Repeat("abcdefghij", 10)}, comp)
	ctx := context.Background()
	require.NoError(t, p.SaveSettings(ctx, testSettings()))

	job, err := p.Accept(ctx, "report.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusReady, job.Status)
	require.Len(t, job.Chunks, 3)
	assert.Equal(t, 50.0, job.Progress)

	persisted, err := repo.ListChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)

	require.NoError(t, p.Run(ctx))
	job = p.Job()
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	for _, c := range job.Chunks {
		assert.Equal(t, "backup", c.ModelUsed)
		assert.Equal(t, "T:"+c.SourceText, c.ResultText)
	}
	assert.Equal(t, 6, comp.calls)

	name, data, err := p.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CogniFlow_report.pdf", name)
	assert.True(t, strings.HasPrefix(string(data), "T:abcdefghij"))
	assert.Equal(t, 2, strings.Count(string(data), "\n\n"))

	persisted, err = repo.ListChunks(ctx)
	require.NoError(t, err)
	for _, c := range persisted {
		assert.Equal(t, constants.ChunkStatusCompleted, c.Status)
	}
	logs, err := p.Logs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Generated CogniFlow_report.pdf", logs[0].Message)
}

func TestProcessor_ExtractionFailure(t *testing.T) {
	repo := repository.NewMemoryStore()
	p := newTestProcessor(t, repo, fakeExtractor{err: common.ExtractionError("open document", errors.New("bad xref"))}, &echoCompleter{})

	_, err := p.Accept(context.Background(), "broken.pdf", []byte("x"))
	require.ErrorIs(t, err, common.ErrExtraction)

	job := p.Job()
	assert.Equal(t, constants.JobStatusError, job.Status)
	assert.Contains(t, job.Error, "bad xref")
	assert.Empty(t, job.Chunks)

	logs, err := p.Logs(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, constants.LogLevelError, logs[0].Level)
}

func TestProcessor_RejectsNonPDF(t *testing.T) {
	p := newTestProcessor(t, repository.NewMemoryStore(), fakeExtractor{text: "x"}, &echoCompleter{})
	_, err := p.Accept(context.Background(), "notes.docx", []byte("x"))
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.Nil(t, p.Job())
}

func TestProcessor_MissingCredential(t *testing.T) {
	repo := repository.NewMemoryStore()
	comp := &echoCompleter{}
	p := NewProcessor(nil, repo, fakeExtractor{text: "hello"}, comp, textRenderer{})
	ctx := context.Background()
	require.NoError(t, p.SaveSettings(ctx, testSettings()))
	_, err := p.Accept(ctx, "a.pdf", nil)
	require.NoError(t, err)

	err = p.Run(ctx)
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.Zero(t, comp.calls)
	assert.Equal(t, constants.JobStatusReady, p.Job().Status)

	// a fallback key from the environment is enough
	p = NewProcessor(nil, repo, fakeExtractor{text: "hello"}, comp, textRenderer{}, WithFallbackKeys("", "env-key"), WithModelSwitchDelay(0))
	_, err = p.Restore(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, constants.JobStatusCompleted, p.Job().Status)
}

func TestProcessor_RestoreResumesOnlyUnfinishedChunks(t *testing.T) {
	repo := repository.NewMemoryStore()
	ctx := context.Background()
	comp := &echoCompleter{down: map[string]bool{"primary": true, "backup": true}}
	first := newTestProcessor(t, repo, fakeExtractor{text: strings.Repeat("x", 100)}, comp)
	require.NoError(t, first.SaveSettings(ctx, testSettings()))
	_, err := first.Accept(ctx, "book.pdf", nil)
	require.NoError(t, err)

	require.NoError(t, first.Run(ctx))
	assert.Equal(t, constants.JobStatusError, first.Job().Status)
	assert.Equal(t, "Completed with 3 errors", first.Job().Error)

	// mark one chunk done as if an earlier run had finished it
	chunks, err := repo.ListChunks(ctx)
	require.NoError(t, err)
	chunks[0].Status = constants.ChunkStatusCompleted
	chunks[0].ResultText = "kept"
	require.NoError(t, repo.SaveChunk(ctx, chunks[0]))

	comp.down = nil
	comp.calls = 0
	second := newTestProcessor(t, repo, fakeExtractor{}, comp)
	job, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "book.pdf", job.DocumentName)
	assert.Equal(t, first.Job().ID, job.ID)

	require.NoError(t, second.Run(ctx))
	assert.Equal(t, 2, comp.calls)
	job = second.Job()
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Equal(t, "kept", job.Chunks[0].ResultText)
}

func TestProcessor_RestoreWithNothingPersisted(t *testing.T) {
	p := newTestProcessor(t, repository.NewMemoryStore(), fakeExtractor{}, &echoCompleter{})
	_, err := p.Restore(context.Background())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProcessor_OutputWithoutCompletedChunks(t *testing.T) {
	repo := repository.NewMemoryStore()
	p := newTestProcessor(t, repo, fakeExtractor{text: "abc"}, &echoCompleter{})
	ctx := context.Background()
	_, err := p.Accept(ctx, "a.pdf", nil)
	require.NoError(t, err)

	_, _, err = p.Output(ctx)
	assert.ErrorIs(t, err, common.ErrNothingToAssemble)
}

func TestProcessor_PurgeAndPauseWithoutJob(t *testing.T) {
	repo := repository.NewMemoryStore()
	p := newTestProcessor(t, repo, fakeExtractor{text: "abc"}, &echoCompleter{})
	ctx := context.Background()
	_, err := p.Accept(ctx, "a.pdf", nil)
	require.NoError(t, err)

	require.NoError(t, p.Purge(ctx, false))
	assert.Nil(t, p.Job())
	chunks, err := repo.ListChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.Error(t, p.Pause())
}

// gatedCompleter blocks every call until release is closed.
type gatedCompleter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return "T:" + req.UserPrompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestProcessor_AcceptWhileRunningIsBusy(t *testing.T) {
	repo := repository.NewMemoryStore()
	comp := &gatedCompleter{started: make(chan struct{}), release: make(chan struct{})}
	p := newTestProcessor(t, repo, fakeExtractor{text: strings.Repeat("abcdefghij", 10)}, comp)
	ctx := context.Background()
	require.NoError(t, p.SaveSettings(ctx, testSettings()))
	first, err := p.Accept(ctx, "first.pdf", []byte("%PDF"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	<-comp.started

	_, err = p.Accept(ctx, "second.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, first.ID, p.Job().ID)

	close(comp.release)
	require.NoError(t, <-done)

	persisted, err := repo.ListChunks(ctx)
	require.NoError(t, err)
	for _, c := range persisted {
		assert.Equal(t, constants.ChunkStatusCompleted, c.Status)
	}

	second, err := p.Accept(ctx, "second.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}
