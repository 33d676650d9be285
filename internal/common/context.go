package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyJobID   contextKey = "job_id"
	ContextKeyChunkID contextKey = "chunk_id"
)

// WithJobID adds the live job ID to the context
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ContextKeyJobID, jobID)
}

// JobIDFromContext extracts the job ID from context
func JobIDFromContext(ctx context.Context) string {
	if jobID, ok := ctx.Value(ContextKeyJobID).(string); ok {
		return jobID
	}
	return ""
}

// WithChunkID adds a chunk ID to the context
func WithChunkID(ctx context.Context, chunkID int) context.Context {
	return context.WithValue(ctx, ContextKeyChunkID, chunkID)
}

// ChunkIDFromContext extracts the chunk ID from context, 0 when unset.
func ChunkIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(ContextKeyChunkID).(int); ok {
		return id
	}
	return 0
}

// WithTimeout creates a context with the specified timeout. A non-positive
// timeout returns the parent unchanged with a no-op cancel.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
