package repository

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

// Store persists settings, the activity log and chunk records. Callers own
// the lifecycle: open once, Close when done.
type Store interface {
	// LoadSettings returns the stored settings JSON, or nil when none is stored.
	LoadSettings(ctx context.Context) ([]byte, error)
	SaveSettings(ctx context.Context, raw []byte) error

	// LoadDocument returns the source document of the persisted job, or nil.
	LoadDocument(ctx context.Context) (*entity.Document, error)
	SaveDocument(ctx context.Context, doc entity.Document) error

	AddLog(ctx context.Context, rec entity.LogRecord) error
	// ListLogs returns records newest first. limit <= 0 means all.
	ListLogs(ctx context.Context, limit int) ([]entity.LogRecord, error)

	// SaveChunk inserts or replaces the chunk with the same id.
	SaveChunk(ctx context.Context, c entity.Chunk) error
	// SaveChunks replaces all chunk records atomically.
	SaveChunks(ctx context.Context, chunks []entity.Chunk) error
	// ListChunks returns chunk records in ascending id order.
	ListChunks(ctx context.Context) ([]entity.Chunk, error)
	ClearChunks(ctx context.Context) error

	// ClearAll wipes settings, logs, chunks and the document in one transaction.
	ClearAll(ctx context.Context) error
	Close() error
}

const (
	settingsKey = "settings"
	documentKey = "document"
)

func storageErr(op string, err error) error {
	return common.NewAppError(common.CodeStorage, op, fmt.Errorf("%w: %w", common.ErrDatabase, err))
}
