package jobstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

const defaultStreamBuffer = 32

// ProgressEvent is the aggregate view emitted after every transition.
type ProgressEvent struct {
	JobID     uuid.UUID
	Status    constants.JobStatus
	Progress  float64
	Stage     string
	Error     string
	Completed int
	Failed    int
	Total     int
}

// Terminal reports whether this is the last event of the stream.
func (e ProgressEvent) Terminal() bool { return e.Status.IsTerminal() }

type subscriber struct {
	ch   chan ProgressEvent
	stop chan struct{}
}

// Store holds the single live job. All mutation goes through Apply under one
// lock, so concurrent chunk workers never lose each other's updates.
type Store struct {
	mu     sync.Mutex
	job    *entity.Job
	subs   map[*subscriber]struct{}
	buffer int
	logger *slog.Logger
}

type StoreOption func(*Store)

// WithStreamBuffer sets how many progress events a slow subscriber may lag
// behind before older ones are dropped.
func WithStreamBuffer(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func NewStore(logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		subs:   make(map[*subscriber]struct{}),
		buffer: defaultStreamBuffer,
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply reduces ev into the live job. Start, Restore and Reset always apply.
// Any other event must name the live job or it is dropped with ErrStaleJob.
func (s *Store) Apply(jobID uuid.UUID, ev Event) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.(type) {
	case Start, Restore, Reset:
	default:
		if s.job == nil || s.job.ID != jobID {
			s.logger.Debug("jobstate.stale_event", "job_id", jobID, "event", ev.event())
			return nil, ErrStaleJob
		}
	}

	next, err := Reduce(s.job, ev)
	if err != nil {
		s.logger.Warn("jobstate.rejected", "job_id", jobID, "event", ev.event(), "error", err)
		return nil, err
	}
	replaced := s.job != nil && (next == nil || next.ID != s.job.ID)
	s.job = next

	if replaced {
		s.closeAllLocked()
	}
	if next != nil {
		s.publishLocked(progressOf(next))
	}
	return next.Clone(), nil
}

// Snapshot returns a deep copy of the live job, or nil.
func (s *Store) Snapshot() *entity.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.Clone()
}

// LiveID returns the id of the live job.
func (s *Store) LiveID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return uuid.Nil, false
	}
	return s.job.ID, true
}

// Subscribe returns a finite stream of progress events for the live job. The
// current state is delivered first. The channel closes after a terminal
// event, when the job is reset or replaced, or when ctx is done. Under
// back-pressure the oldest buffered events are dropped; the terminal event is
// always delivered.
func (s *Store) Subscribe(ctx context.Context) <-chan ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriber{
		ch:   make(chan ProgressEvent, s.buffer),
		stop: make(chan struct{}),
	}
	if s.job == nil {
		close(sub.ch)
		return sub.ch
	}

	first := progressOf(s.job)
	sub.ch <- first
	if first.Terminal() {
		close(sub.ch)
		return sub.ch
	}
	s.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.removeLocked(sub)
			s.mu.Unlock()
		case <-sub.stop:
		}
	}()
	return sub.ch
}

func (s *Store) publishLocked(ev ProgressEvent) {
	for sub := range s.subs {
		send(sub.ch, ev)
		if ev.Terminal() {
			s.removeLocked(sub)
		}
	}
}

// send never blocks: only the store writes to ch, so after evicting one
// buffered event there is room.
func send(ch chan ProgressEvent, ev ProgressEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

func (s *Store) removeLocked(sub *subscriber) {
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.stop)
	close(sub.ch)
}

func (s *Store) closeAllLocked() {
	for sub := range s.subs {
		s.removeLocked(sub)
	}
}

func progressOf(j *entity.Job) ProgressEvent {
	completed, failed := entity.CountStatuses(j.Chunks)
	return ProgressEvent{
		JobID:     j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Stage:     j.Stage,
		Error:     j.Error,
		Completed: completed,
		Failed:    failed,
		Total:     len(j.Chunks),
	}
}
