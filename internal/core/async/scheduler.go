package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
	"github.com/joseph-ayodele/cogniflow/internal/jobstate"
	"github.com/joseph-ayodele/cogniflow/internal/llm"
)

var (
	// ErrPaused is returned by Process when a pause stopped dispatching. The
	// job is left paused with in-flight chunks resolved.
	ErrPaused = errors.New("processing paused")
	ErrNoJob  = errors.New("no live job")
)

// Recorder persists chunk outcomes and activity log lines. *repository.SQLStore
// and *repository.MemoryStore satisfy it.
type Recorder interface {
	SaveChunk(ctx context.Context, c entity.Chunk) error
	AddLog(ctx context.Context, rec entity.LogRecord) error
}

type Scheduler struct {
	store   *jobstate.Store
	gateway llm.Transformer
	logger  *slog.Logger

	limit      int
	maxRetries int
	retryDelay time.Duration
	request    llm.TransformRequest
	recorder   Recorder
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
}

type Option func(*Scheduler)

// WithConcurrency bounds the number of chunks in flight.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithMaxRetries sets how many extra full model passes a chunk gets after the
// first one is exhausted.
func WithMaxRetries(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff. Retry r waits delay * 2^r.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithRequest sets the model list, credential, prompts and generation
// parameters. Text is filled per chunk.
func WithRequest(req llm.TransformRequest) Option {
	return func(s *Scheduler) { s.request = req }
}

func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

func NewScheduler(store *jobstate.Store, gateway llm.Transformer, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:      store,
		gateway:    gateway,
		logger:     logger,
		limit:      1,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
		sleep:      common.Sleep,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process transforms every pending or failed chunk of the live job, at most
// limit at a time, then finishes the job. Completed chunks are never
// dispatched again, so calling Process on a finished or empty working set is a
// no-op. Chunk failures are reported through the store, not the return value.
func (s *Scheduler) Process(ctx context.Context) error {
	snap := s.store.Snapshot()
	if snap == nil {
		return ErrNoJob
	}
	work := workingSet(snap.Chunks)
	if len(work) == 0 {
		s.logger.Debug("scheduler.nothing_to_do", "job_id", snap.ID)
		return nil
	}
	if len(s.request.Models) == 0 {
		return common.ConfigError("model priority list is empty")
	}
	if strings.TrimSpace(s.request.Credential) == "" {
		return common.ConfigError("API key is not configured")
	}

	jobID := snap.ID
	if _, err := s.store.Apply(jobID, jobstate.StartProcessing{}); err != nil {
		return err
	}
	s.logger.Info("scheduler.start", "job_id", jobID, "chunks", len(work), "concurrency", s.limit, "max_retries", s.maxRetries)
	s.record(ctx, constants.LogLevelInfo, fmt.Sprintf("Processing %d chunks (concurrency %d)", len(work), s.limit), "")

	sem := semaphore.NewWeighted(int64(s.limit))
	var wg sync.WaitGroup
	var stopErr error

	for _, c := range work {
		if err := sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}
		if err := s.checkDispatch(jobID); err != nil {
			sem.Release(1)
			stopErr = err
			break
		}
		if _, err := s.store.Apply(jobID, jobstate.ChunkStarted{ID: c.ID}); err != nil {
			sem.Release(1)
			stopErr = err
			break
		}

		wg.Add(1)
		go func(c entity.Chunk) {
			defer wg.Done()
			defer sem.Release(1)
			s.runChunk(ctx, jobID, c)
		}(c)
	}
	wg.Wait()

	switch {
	case errors.Is(stopErr, ErrPaused):
		s.logger.Info("scheduler.paused", "job_id", jobID)
		s.record(ctx, constants.LogLevelWarn, "Processing paused", "")
		return ErrPaused
	case errors.Is(stopErr, jobstate.ErrStaleJob):
		s.logger.Info("scheduler.job_replaced", "job_id", jobID)
		return stopErr
	case stopErr != nil:
		// cancelled: leave the job resumable
		_, _ = s.store.Apply(jobID, jobstate.Pause{})
		s.logger.Warn("scheduler.stopped", "job_id", jobID, "error", stopErr)
		return stopErr
	}
	if err := ctx.Err(); err != nil {
		_, _ = s.store.Apply(jobID, jobstate.Pause{})
		return err
	}

	job, err := s.store.Apply(jobID, jobstate.Finish{})
	if err != nil {
		return err
	}
	completed, failed := entity.CountStatuses(job.Chunks)
	s.logger.Info("scheduler.finished", "job_id", jobID, "status", job.Status, "completed", completed, "failed", failed)
	if failed > 0 {
		s.record(ctx, constants.LogLevelWarn, fmt.Sprintf("Finished with %d failed chunks", failed), "")
	} else {
		s.record(ctx, constants.LogLevelSuccess, fmt.Sprintf("All %d chunks processed", completed), "")
	}
	return nil
}

// Resume clears a pause and re-enters Process.
func (s *Scheduler) Resume(ctx context.Context) error {
	id, ok := s.store.LiveID()
	if !ok {
		return ErrNoJob
	}
	if _, err := s.store.Apply(id, jobstate.Resume{}); err != nil {
		return err
	}
	s.record(ctx, constants.LogLevelInfo, "Processing resumed", "")
	return s.Process(ctx)
}

func (s *Scheduler) checkDispatch(jobID uuid.UUID) error {
	snap := s.store.Snapshot()
	if snap == nil || snap.ID != jobID {
		return jobstate.ErrStaleJob
	}
	if snap.Status == constants.JobStatusPaused {
		return ErrPaused
	}
	return nil
}

// runChunk owns one chunk until it is completed or terminally failed.
func (s *Scheduler) runChunk(ctx context.Context, jobID uuid.UUID, c entity.Chunk) {
	ctx = common.WithChunkID(common.WithJobID(ctx, jobID.String()), c.ID)
	req := s.request
	req.Text = c.SourceText

	for retry := 0; ; retry++ {
		res, err := s.gateway.Transform(ctx, req)
		if err == nil {
			s.settle(ctx, jobID, jobstate.ChunkCompleted{ID: c.ID, Text: res.Text, Model: res.Model},
				constants.LogLevelSuccess, fmt.Sprintf("Chunk %d completed", c.ID), res.Model)
			return
		}

		if !common.IsRetryable(err) || retry >= s.maxRetries {
			err = &common.ChunkError{ChunkID: c.ID, Err: err}
			s.settle(ctx, jobID, jobstate.ChunkFailed{ID: c.ID, Err: err},
				constants.LogLevelError, fmt.Sprintf("Chunk %d failed: %v", c.ID, err), "")
			return
		}
		if live, ok := s.store.LiveID(); !ok || live != jobID {
			return
		}

		delay := s.retryDelay << retry
		s.logger.Warn("scheduler.chunk.retry", "job_id", jobID, "chunk_id", c.ID, "retry", retry+1, "delay", delay, "error", err)
		s.record(ctx, constants.LogLevelWarn,
			fmt.Sprintf("Chunk %d: all models failed, retrying in %s (%d/%d)", c.ID, delay, retry+1, s.maxRetries), "")
		if err := s.sleep(ctx, delay); err != nil {
			s.settle(ctx, jobID, jobstate.ChunkFailed{ID: c.ID, Err: &common.ChunkError{ChunkID: c.ID, Err: err}},
				constants.LogLevelError, fmt.Sprintf("Chunk %d interrupted: %v", c.ID, err), "")
			return
		}
	}
}

// settle applies a terminal chunk event and persists the result. Results for
// a job that is no longer live are dropped.
func (s *Scheduler) settle(ctx context.Context, jobID uuid.UUID, ev jobstate.Event, level constants.LogLevel, msg, model string) {
	job, err := s.store.Apply(jobID, ev)
	if err != nil {
		s.logger.Debug("scheduler.result_dropped", "job_id", jobID, "event", jobstate.EventName(ev), "error", err)
		return
	}
	if level == constants.LogLevelError {
		s.logger.Warn("scheduler.chunk.failed", "job_id", jobID, "message", msg)
	} else {
		s.logger.Debug("scheduler.chunk.completed", "job_id", jobID, "message", msg, "model", model)
	}

	if s.recorder != nil {
		var id int
		switch e := ev.(type) {
		case jobstate.ChunkCompleted:
			id = e.ID
		case jobstate.ChunkFailed:
			id = e.ID
		}
		if i := job.ChunkIndex(id); i >= 0 {
			if err := s.recorder.SaveChunk(context.WithoutCancel(ctx), job.Chunks[i]); err != nil {
				s.logger.Error("scheduler.persist_chunk_failed", "job_id", jobID, "chunk_id", id, "error", err)
			}
		}
	}
	s.record(ctx, level, msg, model)
}

func (s *Scheduler) record(ctx context.Context, level constants.LogLevel, msg, model string) {
	if s.recorder == nil {
		return
	}
	rec := entity.LogRecord{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Level:     level,
		Message:   msg,
		ModelUsed: model,
	}
	if err := s.recorder.AddLog(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("scheduler.persist_log_failed", "error", err)
	}
}

// workingSet returns pending and failed chunks in ascending id order.
func workingSet(chunks []entity.Chunk) []entity.Chunk {
	out := make([]entity.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Status.Incomplete() {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b entity.Chunk) int { return a.ID - b.ID })
	return out
}
