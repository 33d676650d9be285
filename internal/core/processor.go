package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/assemble"
	"github.com/joseph-ayodele/cogniflow/internal/chunker"
	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/core/async"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
	"github.com/joseph-ayodele/cogniflow/internal/extract"
	"github.com/joseph-ayodele/cogniflow/internal/jobstate"
	"github.com/joseph-ayodele/cogniflow/internal/llm"
	"github.com/joseph-ayodele/cogniflow/internal/repository"
	"github.com/joseph-ayodele/cogniflow/internal/settings"
)

// ErrBusy is returned when a run or a new document is requested while a run
// is in progress.
var ErrBusy = errors.New("a run is already in progress")

// Processor drives the single live job: extract, chunk, transform, assemble.
type Processor struct {
	logger    *slog.Logger
	repo      repository.Store
	extractor extract.TextExtractor
	completer llm.Completer
	renderer  assemble.Renderer
	state     *jobstate.Store

	apiKey      string
	envKeys     []string
	switchDelay time.Duration
	sleep       func(context.Context, time.Duration) error

	mu      sync.Mutex
	running bool
}

type Option func(*Processor)

// WithAPIKey sets an explicit credential that wins over stored settings.
func WithAPIKey(key string) Option {
	return func(p *Processor) { p.apiKey = key }
}

// WithFallbackKeys adds credentials consulted after stored settings.
func WithFallbackKeys(keys ...string) Option {
	return func(p *Processor) { p.envKeys = append(p.envKeys, keys...) }
}

func WithModelSwitchDelay(d time.Duration) Option {
	return func(p *Processor) { p.switchDelay = d }
}

func WithJobStore(s *jobstate.Store) Option {
	return func(p *Processor) {
		if s != nil {
			p.state = s
		}
	}
}

// WithRetrySleep replaces the scheduler backoff wait.
func WithRetrySleep(fn func(context.Context, time.Duration) error) Option {
	return func(p *Processor) { p.sleep = fn }
}

func NewProcessor(
	logger *slog.Logger,
	repo repository.Store,
	extractor extract.TextExtractor,
	completer llm.Completer,
	renderer assemble.Renderer,
	opts ...Option,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:      logger,
		repo:        repo,
		extractor:   extractor,
		completer:   completer,
		renderer:    renderer,
		switchDelay: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(p)
	}
	if p.state == nil {
		p.state = jobstate.NewStore(logger)
	}
	return p
}

// Job returns a snapshot of the live job, or nil.
func (p *Processor) Job() *entity.Job { return p.state.Snapshot() }

// Subscribe streams progress of the live job.
func (p *Processor) Subscribe(ctx context.Context) <-chan jobstate.ProgressEvent {
	return p.state.Subscribe(ctx)
}

// Settings returns stored settings merged over the defaults.
func (p *Processor) Settings(ctx context.Context) (settings.Settings, error) {
	raw, err := p.repo.LoadSettings(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	return settings.Merge(raw)
}

// SaveSettings validates and persists s.
func (p *Processor) SaveSettings(ctx context.Context, s settings.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return common.WrapError(err, "encode settings")
	}
	if err := p.repo.SaveSettings(ctx, raw); err != nil {
		return err
	}
	p.record(ctx, constants.LogLevelInfo, "Settings saved", "")
	return nil
}

// Accept starts a new job for a document: extract text with per-page
// progress, split it into chunks and persist them. Any previous live job is
// replaced. Extraction failures put the job in error and are returned.
func (p *Processor) Accept(ctx context.Context, name string, data []byte) (*entity.Job, error) {
	if !constants.IsAllowedExt(filepath.Ext(name)) {
		return nil, common.ConfigErrorf("unsupported file type %q: only PDF documents are accepted", filepath.Ext(name))
	}
	// chunk records are keyed by id, so a new job cannot overlap a run
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	cfg, err := p.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	if _, err := p.state.Apply(id, jobstate.Start{ID: id, Name: name, Size: int64(len(data))}); err != nil {
		return nil, err
	}
	p.logger.Info("processor.accept", "job_id", id, "document", name, "bytes", len(data))
	p.record(ctx, constants.LogLevelInfo, fmt.Sprintf("Started processing %s", name), "")

	res, err := p.extractor.Extract(ctx, data, func(done, total int) {
		if total > 0 {
			_, _ = p.state.Apply(id, jobstate.ExtractionProgress{Fraction: float64(done) / float64(total)})
		}
	})
	if err != nil {
		return nil, p.failExtraction(ctx, id, err)
	}
	for _, w := range res.Warnings {
		p.record(ctx, constants.LogLevelWarn, "Extraction: "+w, "")
	}

	chunks, err := chunker.Split(res.Text, cfg.BatchSize, cfg.OverlapSize)
	if err != nil {
		return nil, p.failExtraction(ctx, id, err)
	}
	if err := p.repo.SaveChunks(ctx, chunks); err != nil {
		p.logger.Error("processor.persist_chunks_failed", "job_id", id, "error", err)
	}
	if err := p.repo.SaveDocument(ctx, entity.Document{JobID: id, Name: name, Size: int64(len(data))}); err != nil {
		p.logger.Error("processor.persist_document_failed", "job_id", id, "error", err)
	}

	job, err := p.state.Apply(id, jobstate.Ready{Chunks: chunks})
	if err != nil {
		return nil, err
	}
	p.logger.Info("processor.ready", "job_id", id, "pages", res.Pages, "method", res.Method, "chunks", len(chunks))
	p.record(ctx, constants.LogLevelInfo, fmt.Sprintf("Extracted %d pages into %d chunks", res.Pages, len(chunks)), "")
	return job, nil
}

func (p *Processor) failExtraction(ctx context.Context, id uuid.UUID, err error) error {
	p.logger.Error("processor.extract.failed", "job_id", id, "error", err)
	_, _ = p.state.Apply(id, jobstate.ExtractionFailed{Err: err})
	p.record(ctx, constants.LogLevelError, fmt.Sprintf("Extraction failed: %v", err), "")
	return err
}

// Restore rebuilds the live job from persisted chunk records so a run
// interrupted by a restart can be resumed.
func (p *Processor) Restore(ctx context.Context) (*entity.Job, error) {
	chunks, err := p.repo.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, common.NewAppError(common.CodeStorage, "no persisted chunks to restore", common.ErrNotFound)
	}
	doc, err := p.repo.LoadDocument(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &entity.Document{JobID: uuid.New(), Name: "document.pdf"}
	}
	job, err := p.state.Apply(doc.JobID, jobstate.Restore{ID: doc.JobID, Name: doc.Name, Chunks: chunks})
	if err != nil {
		return nil, err
	}
	completed, failed := entity.CountStatuses(job.Chunks)
	p.logger.Info("processor.restored", "job_id", job.ID, "chunks", len(chunks), "completed", completed, "failed", failed)
	return job, nil
}

// Run processes every pending or failed chunk of the live job.
func (p *Processor) Run(ctx context.Context) error {
	return p.withScheduler(ctx, func(s *async.Scheduler) error { return s.Process(ctx) })
}

// Resume clears a pause and continues processing.
func (p *Processor) Resume(ctx context.Context) error {
	return p.withScheduler(ctx, func(s *async.Scheduler) error { return s.Resume(ctx) })
}

// Pause stops new dispatches. In-flight chunks finish and Run returns
// async.ErrPaused.
func (p *Processor) Pause() error {
	id, ok := p.state.LiveID()
	if !ok {
		return async.ErrNoJob
	}
	if _, err := p.state.Apply(id, jobstate.Pause{}); err != nil {
		return err
	}
	p.logger.Info("processor.pause_requested", "job_id", id)
	return nil
}

func (p *Processor) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrBusy
	}
	p.running = true
	return nil
}

func (p *Processor) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Processor) withScheduler(ctx context.Context, fn func(*async.Scheduler) error) error {
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	sched, err := p.scheduler(ctx)
	if err != nil {
		return err
	}
	return fn(sched)
}

// scheduler builds a scheduler from the current settings so edits between
// runs take effect.
func (p *Processor) scheduler(ctx context.Context) (*async.Scheduler, error) {
	cfg, err := p.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	candidates := append([]string{p.apiKey, cfg.APIKey}, p.envKeys...)
	key, err := llm.ResolveCredential(candidates...)
	if err != nil {
		return nil, err
	}

	gateway := llm.NewGateway(p.completer, p.logger,
		llm.WithRequestTimeout(cfg.RequestTimeoutDuration()),
		llm.WithModelSwitchDelay(p.switchDelay),
	)
	opts := []async.Option{
		async.WithConcurrency(cfg.ConcurrencyLimit()),
		async.WithMaxRetries(cfg.MaxRetries),
		async.WithRetryDelay(cfg.RetryBaseDelay()),
		async.WithRequest(cfg.TransformRequest(key)),
		async.WithRecorder(p.repo),
	}
	if p.sleep != nil {
		opts = append(opts, async.WithSleep(p.sleep))
	}
	return async.NewScheduler(p.state, gateway, p.logger, opts...), nil
}

// Output renders the completed chunks of the live job into a PDF and returns
// it with its file name.
func (p *Processor) Output(ctx context.Context) (string, []byte, error) {
	job := p.state.Snapshot()
	if job == nil {
		return "", nil, async.ErrNoJob
	}
	cfg, err := p.Settings(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := assemble.NewAssembler(p.renderer).Document(job.Chunks, cfg.Style())
	if err != nil {
		p.record(ctx, constants.LogLevelError, fmt.Sprintf("Failed to build document: %v", err), "")
		return "", nil, err
	}
	name := assemble.OutputName(job.DocumentName)
	p.logger.Info("processor.output", "job_id", job.ID, "name", name, "bytes", len(data))
	p.record(ctx, constants.LogLevelSuccess, fmt.Sprintf("Generated %s", name), "")
	return name, data, nil
}

// Reset drops the live job. Late results of an in-flight run are discarded.
func (p *Processor) Reset() {
	id, _ := p.state.LiveID()
	_, _ = p.state.Apply(id, jobstate.Reset{})
	p.logger.Info("processor.reset", "job_id", id)
}

// Purge resets the live job and deletes persisted chunks, or every
// persisted record when all is set.
func (p *Processor) Purge(ctx context.Context, all bool) error {
	p.Reset()
	if all {
		return p.repo.ClearAll(ctx)
	}
	return p.repo.ClearChunks(ctx)
}

// Logs returns the newest activity records first.
func (p *Processor) Logs(ctx context.Context, limit int) ([]entity.LogRecord, error) {
	return p.repo.ListLogs(ctx, limit)
}

func (p *Processor) record(ctx context.Context, level constants.LogLevel, msg, model string) {
	rec := entity.LogRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		ModelUsed: model,
	}
	if err := p.repo.AddLog(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Error("processor.persist_log_failed", "error", err)
	}
}
