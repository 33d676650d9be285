package entity

import (
	"slices"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cogniflow/constants"
)

// Job is one end-to-end document conversion run. Only one is live at a time.
type Job struct {
	ID           uuid.UUID           `json:"id"`
	DocumentName string              `json:"fileName"`
	DocumentSize int64               `json:"fileSize"`
	Status       constants.JobStatus `json:"status"`
	Progress     float64             `json:"progress"`
	Stage        string              `json:"currentStage"`
	Chunks       []Chunk             `json:"batches"`
	Error        string              `json:"error,omitempty"`
}

// Clone returns a deep copy so callers never share the chunk slice.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Chunks = slices.Clone(j.Chunks)
	return &out
}

// ChunkIndex returns the position of chunk id, or -1.
func (j *Job) ChunkIndex(id int) int {
	for i := range j.Chunks {
		if j.Chunks[i].ID == id {
			return i
		}
	}
	return -1
}
