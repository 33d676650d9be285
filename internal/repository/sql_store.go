package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

var chunkColumns = []string{"id", "status", "source_text", "result_text", "error", "model_used", "start_offset", "end_offset", "updated_at"}

// SQLStore implements Store on top of the ent SQL driver and builders.
type SQLStore struct {
	drv     *entsql.Driver
	dialect string
	onClose func()
	logger  *slog.Logger
	now     func() time.Time
}

func newSQLStore(drv *entsql.Driver, onClose func(), logger *slog.Logger) *SQLStore {
	return &SQLStore{drv: drv, dialect: drv.Dialect(), onClose: onClose, logger: logger, now: time.Now}
}

func (s *SQLStore) b() *entsql.DialectBuilder { return entsql.Dialect(s.dialect) }

// execer is satisfied by the driver and by a transaction.
type execer interface {
	Exec(ctx context.Context, query string, args, v any) error
}

func (s *SQLStore) Close() error {
	s.logger.Info("closing database connections")
	err := s.drv.Close()
	if s.onClose != nil {
		s.onClose()
	}
	if err != nil {
		s.logger.Error("failed to close database", "error", err)
		return storageErr("close", err)
	}
	return nil
}

func (s *SQLStore) getValue(ctx context.Context, key string) ([]byte, error) {
	b := s.b()
	query, args := b.Select("value").From(b.Table("app_settings")).Where(entsql.EQ("key", key)).Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, storageErr("load "+key, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return nil, storageErr("scan "+key, err)
	}
	return []byte(value), nil
}

func (s *SQLStore) putValue(ctx context.Context, ex execer, key string, value []byte) error {
	query, args := s.b().Insert("app_settings").
		Columns("key", "value", "updated_at").
		Values(key, string(value), s.now().UnixMilli()).
		OnConflict(entsql.ConflictColumns("key"), entsql.ResolveWithNewValues()).
		Query()
	if err := ex.Exec(ctx, query, args, nil); err != nil {
		return storageErr("save "+key, err)
	}
	return nil
}

func (s *SQLStore) LoadSettings(ctx context.Context) ([]byte, error) {
	return s.getValue(ctx, settingsKey)
}

func (s *SQLStore) SaveSettings(ctx context.Context, raw []byte) error {
	return s.putValue(ctx, s.drv, settingsKey, raw)
}

func (s *SQLStore) LoadDocument(ctx context.Context) (*entity.Document, error) {
	raw, err := s.getValue(ctx, documentKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var doc entity.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, storageErr("decode document", err)
	}
	return &doc, nil
}

func (s *SQLStore) SaveDocument(ctx context.Context, doc entity.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return storageErr("encode document", err)
	}
	return s.putValue(ctx, s.drv, documentKey, raw)
}

func (s *SQLStore) AddLog(ctx context.Context, rec entity.LogRecord) error {
	query, args := s.b().Insert("process_logs").
		Columns("id", "ts", "level", "message", "model_used").
		Values(rec.ID, rec.Timestamp.UnixMilli(), string(rec.Level), rec.Message, rec.ModelUsed).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return storageErr("add log", err)
	}
	return nil
}

// logSeq names the insertion-order column that breaks timestamp ties: the
// implicit rowid on sqlite, a BIGSERIAL on postgres.
func (s *SQLStore) logSeq() string {
	if s.dialect == dialect.Postgres {
		return "seq"
	}
	return "rowid"
}

func (s *SQLStore) ListLogs(ctx context.Context, limit int) ([]entity.LogRecord, error) {
	b := s.b()
	sel := b.Select("id", "ts", "level", "message", "model_used").
		From(b.Table("process_logs")).
		OrderBy(entsql.Desc("ts"), entsql.Desc(s.logSeq()))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, storageErr("list logs", err)
	}
	defer rows.Close()

	var out []entity.LogRecord
	for rows.Next() {
		var (
			rec   entity.LogRecord
			ts    int64
			level string
		)
		if err := rows.Scan(&rec.ID, &ts, &level, &rec.Message, &rec.ModelUsed); err != nil {
			return nil, storageErr("scan log", err)
		}
		rec.Timestamp = time.UnixMilli(ts)
		rec.Level = constants.LogLevel(level)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list logs", err)
	}
	return out, nil
}

func (s *SQLStore) saveChunk(ctx context.Context, ex execer, c entity.Chunk) error {
	query, args := s.b().Insert("pdf_chunks").
		Columns(chunkColumns...).
		Values(c.ID, string(c.Status), c.SourceText, c.ResultText, c.Error, c.ModelUsed, c.Start, c.End, s.now().UnixMilli()).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := ex.Exec(ctx, query, args, nil); err != nil {
		return storageErr("save chunk", err)
	}
	return nil
}

func (s *SQLStore) SaveChunk(ctx context.Context, c entity.Chunk) error {
	return s.saveChunk(ctx, s.drv, c)
}

func (s *SQLStore) SaveChunks(ctx context.Context, chunks []entity.Chunk) error {
	return s.inTx(ctx, "save chunks", func(tx dialect.Tx) error {
		if err := s.deleteAll(ctx, tx, "pdf_chunks"); err != nil {
			return err
		}
		for _, c := range chunks {
			if err := s.saveChunk(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) ListChunks(ctx context.Context) ([]entity.Chunk, error) {
	b := s.b()
	query, args := b.Select(chunkColumns[:8]...).From(b.Table("pdf_chunks")).OrderBy("id").Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, storageErr("list chunks", err)
	}
	defer rows.Close()

	var out []entity.Chunk
	for rows.Next() {
		var (
			c      entity.Chunk
			status string
		)
		if err := rows.Scan(&c.ID, &status, &c.SourceText, &c.ResultText, &c.Error, &c.ModelUsed, &c.Start, &c.End); err != nil {
			return nil, storageErr("scan chunk", err)
		}
		c.Status = constants.ChunkStatus(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list chunks", err)
	}
	return out, nil
}

func (s *SQLStore) ClearChunks(ctx context.Context) error {
	return s.deleteAll(ctx, s.drv, "pdf_chunks")
}

func (s *SQLStore) ClearAll(ctx context.Context) error {
	return s.inTx(ctx, "clear all", func(tx dialect.Tx) error {
		for _, table := range []string{"app_settings", "process_logs", "pdf_chunks"} {
			if err := s.deleteAll(ctx, tx, table); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) deleteAll(ctx context.Context, ex execer, table string) error {
	query, args := s.b().Delete(table).Query()
	if err := ex.Exec(ctx, query, args, nil); err != nil {
		return storageErr("clear "+table, err)
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, op string, fn func(tx dialect.Tx) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.logger.Error("repository.rollback_failed", "op", op, "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}
	return nil
}
