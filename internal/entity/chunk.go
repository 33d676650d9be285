package entity

import "github.com/joseph-ayodele/cogniflow/constants"

// Chunk is a contiguous slice of source text and the unit of inference work.
// Start/End are rune offsets into the extracted document text, End exclusive.
type Chunk struct {
	ID         int                   `json:"id"`
	Status     constants.ChunkStatus `json:"status"`
	SourceText string                `json:"textContent"`
	ResultText string                `json:"transformedText"`
	Error      string                `json:"error,omitempty"`
	ModelUsed  string                `json:"modelUsed,omitempty"`
	Start      int                   `json:"start"`
	End        int                   `json:"end"`
}

// CountStatuses returns how many chunks are completed and failed.
func CountStatuses(chunks []Chunk) (completed, failed int) {
	for _, c := range chunks {
		switch c.Status {
		case constants.ChunkStatusCompleted:
			completed++
		case constants.ChunkStatusFailed:
			failed++
		}
	}
	return completed, failed
}
