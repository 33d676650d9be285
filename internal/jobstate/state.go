package jobstate

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

var (
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrStaleJob          = errors.New("event for a job that is no longer live")
)

// Event is a job transition request. Only the types in this file implement it.
type Event interface{ event() string }

type (
	// Start replaces any live job with a fresh analyzing one.
	Start struct {
		ID   uuid.UUID
		Name string
		Size int64
	}
	// ExtractionProgress reports the fraction of pages read, 0..1.
	ExtractionProgress struct{ Fraction float64 }
	Ready              struct{ Chunks []entity.Chunk }
	// Restore rebuilds a ready job from persisted chunk records.
	Restore struct {
		ID     uuid.UUID
		Name   string
		Chunks []entity.Chunk
	}
	ExtractionFailed struct{ Err error }
	StartProcessing  struct{}
	ChunkStarted     struct{ ID int }
	ChunkCompleted   struct {
		ID    int
		Text  string
		Model string
	}
	ChunkFailed struct {
		ID  int
		Err error
	}
	Pause  struct{}
	Resume struct{}
	Finish struct{}
	Reset  struct{}
)

func (Start) event() string              { return "start" }
func (ExtractionProgress) event() string { return "extraction_progress" }
func (Ready) event() string              { return "ready" }
func (Restore) event() string            { return "restore" }
func (ExtractionFailed) event() string   { return "extraction_failed" }
func (StartProcessing) event() string    { return "start_processing" }
func (ChunkStarted) event() string       { return "chunk_started" }
func (ChunkCompleted) event() string     { return "chunk_completed" }
func (ChunkFailed) event() string        { return "chunk_failed" }
func (Pause) event() string              { return "pause" }
func (Resume) event() string             { return "resume" }
func (Finish) event() string             { return "finish" }
func (Reset) event() string              { return "reset" }

// EventName is the log name of ev.
func EventName(ev Event) string { return ev.event() }

// Reduce returns the job that results from applying ev to current. It never
// mutates current. Reset yields a nil job. Illegal transitions return an
// error wrapping ErrInvalidTransition.
func Reduce(current *entity.Job, ev Event) (*entity.Job, error) {
	switch e := ev.(type) {
	case Start:
		return &entity.Job{
			ID:           e.ID,
			DocumentName: e.Name,
			DocumentSize: e.Size,
			Status:       constants.JobStatusAnalyzing,
			Stage:        "Initializing...",
		}, nil
	case Restore:
		chunks := make([]entity.Chunk, len(e.Chunks))
		copy(chunks, e.Chunks)
		for i := range chunks {
			// nothing survives a restart in flight
			if chunks[i].Status == constants.ChunkStatusProcessing {
				chunks[i].Status = constants.ChunkStatusPending
			}
		}
		j := &entity.Job{
			ID:           e.ID,
			DocumentName: e.Name,
			Status:       constants.JobStatusReady,
			Chunks:       chunks,
		}
		recount(j)
		j.Stage = fmt.Sprintf("Restored %d chunks", len(chunks))
		return j, nil
	case Reset:
		return nil, nil
	}

	if current == nil {
		return nil, fmt.Errorf("%w: %s with no live job", ErrInvalidTransition, ev.event())
	}
	next := current.Clone()

	switch e := ev.(type) {
	case ExtractionProgress:
		if err := expect(current, ev, constants.JobStatusAnalyzing); err != nil {
			return nil, err
		}
		p := 50 * clamp(e.Fraction)
		if p > next.Progress {
			next.Progress = p
		}
		next.Stage = fmt.Sprintf("Extracting text (%.0f%%)", clamp(e.Fraction)*100)

	case Ready:
		if err := expect(current, ev, constants.JobStatusAnalyzing); err != nil {
			return nil, err
		}
		next.Chunks = make([]entity.Chunk, len(e.Chunks))
		copy(next.Chunks, e.Chunks)
		next.Status = constants.JobStatusReady
		next.Progress = 50
		next.Stage = fmt.Sprintf("Ready to process %d chunks", len(e.Chunks))

	case ExtractionFailed:
		if err := expect(current, ev, constants.JobStatusAnalyzing); err != nil {
			return nil, err
		}
		next.Status = constants.JobStatusError
		next.Stage = "Extraction failed"
		if e.Err != nil {
			next.Error = e.Err.Error()
		}

	case StartProcessing:
		if err := expect(current, ev,
			constants.JobStatusReady, constants.JobStatusPaused,
			constants.JobStatusError, constants.JobStatusProcessing); err != nil {
			return nil, err
		}
		next.Status = constants.JobStatusProcessing
		next.Error = ""
		recount(next)

	case ChunkStarted:
		if err := updateChunk(next, ev, e.ID, func(c *entity.Chunk) {
			c.Status = constants.ChunkStatusProcessing
			c.Error = ""
		}); err != nil {
			return nil, err
		}

	case ChunkCompleted:
		if err := updateChunk(next, ev, e.ID, func(c *entity.Chunk) {
			c.Status = constants.ChunkStatusCompleted
			c.ResultText = e.Text
			c.ModelUsed = e.Model
			c.Error = ""
		}); err != nil {
			return nil, err
		}

	case ChunkFailed:
		if err := updateChunk(next, ev, e.ID, func(c *entity.Chunk) {
			c.Status = constants.ChunkStatusFailed
			c.Error = "unknown error"
			if e.Err != nil {
				c.Error = e.Err.Error()
			}
		}); err != nil {
			return nil, err
		}

	case Pause:
		if err := expect(current, ev, constants.JobStatusProcessing); err != nil {
			return nil, err
		}
		next.Status = constants.JobStatusPaused
		next.Stage = "Paused"

	case Resume:
		if err := expect(current, ev, constants.JobStatusPaused); err != nil {
			return nil, err
		}
		next.Status = constants.JobStatusProcessing
		recount(next)

	case Finish:
		// a pause that lands after the last dispatch does not block finishing
		if err := expect(current, ev, constants.JobStatusProcessing, constants.JobStatusPaused); err != nil {
			return nil, err
		}
		_, failed := entity.CountStatuses(next.Chunks)
		if failed == 0 {
			next.Status = constants.JobStatusCompleted
			next.Progress = 100
			next.Stage = "Completed"
		} else {
			next.Status = constants.JobStatusError
			next.Error = fmt.Sprintf("Completed with %d errors", failed)
			next.Stage = next.Error
		}

	default:
		return nil, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
	return next, nil
}

func expect(j *entity.Job, ev Event, allowed ...constants.JobStatus) error {
	for _, s := range allowed {
		if j.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.event(), j.Status)
}

// updateChunk replaces chunk id in place and recomputes the aggregate.
// Chunk results are accepted while paused so in-flight work can drain.
func updateChunk(j *entity.Job, ev Event, id int, fn func(*entity.Chunk)) error {
	if err := expect(j, ev, constants.JobStatusProcessing, constants.JobStatusPaused); err != nil {
		return err
	}
	i := j.ChunkIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s for unknown chunk %d", ErrInvalidTransition, ev.event(), id)
	}
	fn(&j.Chunks[i])
	recount(j)
	return nil
}

func recount(j *entity.Job) {
	total := len(j.Chunks)
	completed, failed := entity.CountStatuses(j.Chunks)
	if total > 0 {
		j.Progress = 50 + 50*float64(completed)/float64(total)
	} else {
		j.Progress = 50
	}
	if j.Status == constants.JobStatusPaused {
		return
	}
	j.Stage = fmt.Sprintf("%d/%d processed (failed: %d)", completed, total, failed)
}

func clamp(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
