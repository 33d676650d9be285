package constants

// JobStatus is the lifecycle state of the single live conversion job.
type JobStatus string

const (
	JobStatusAnalyzing  JobStatus = "analyzing"  // document accepted, text not available yet
	JobStatusReady      JobStatus = "ready"      // chunked, nothing dispatched
	JobStatusProcessing JobStatus = "processing" // scheduler dispatching chunks
	JobStatusPaused     JobStatus = "paused"     // no new dispatch; in-flight chunks drain
	JobStatusCompleted  JobStatus = "completed"  // every chunk completed
	JobStatusError      JobStatus = "error"      // extraction failed or finished with failed chunks
)

// IsTerminal reports whether no further transitions are expected without operator action.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// ChunkStatus is the canonical status of a single chunk. Stored verbatim in pdf_chunks.status.
type ChunkStatus string

const (
	ChunkStatusPending    ChunkStatus = "pending"
	ChunkStatusProcessing ChunkStatus = "processing"
	ChunkStatusCompleted  ChunkStatus = "completed"
	ChunkStatusFailed     ChunkStatus = "failed"
)

// Incomplete reports whether a chunk belongs to the scheduler's working set.
func (s ChunkStatus) Incomplete() bool {
	return s == ChunkStatusPending || s == ChunkStatusFailed
}

// LogLevel is the level of a persisted activity log record.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)
