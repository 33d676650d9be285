package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// Open connects to the configured database, runs migrations and returns the store.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", "sqlite", dialect.SQLite:
		return openSQLite(ctx, cfg, logger)
	case dialect.Postgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, common.ConfigErrorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*SQLStore, error) {
	logger.Info("opening sqlite database", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, storageErr("open sqlite", err)
	}
	// sqlite allows one writer; an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	s := newSQLStore(entsql.OpenDB(dialect.SQLite, db), nil, logger)
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// openPostgres creates a pgx pool and wraps it for the ent driver.
func openPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*SQLStore, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, common.ConfigErrorf("invalid postgres dsn: %v", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "cogniflow"

	dialCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, storageErr("connect postgres", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, storageErr("ping postgres", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	s := newSQLStore(entsql.OpenDB(dialect.Postgres, db), pool.Close, logger)
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("successfully connected to database")
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	big := "INTEGER"
	if s.dialect == dialect.Postgres {
		big = "BIGINT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at BIGINT_T NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS process_logs (
			id TEXT PRIMARY KEY,
			ts BIGINT_T NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			model_used TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS process_logs_ts_idx ON process_logs (ts)`,
		`CREATE TABLE IF NOT EXISTS pdf_chunks (
			id INTEGER PRIMARY KEY,
			status TEXT NOT NULL,
			source_text TEXT NOT NULL,
			result_text TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			model_used TEXT NOT NULL DEFAULT '',
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			updated_at BIGINT_T NOT NULL
		)`,
	}
	if s.dialect == dialect.Postgres {
		stmts = append(stmts, `ALTER TABLE process_logs ADD COLUMN IF NOT EXISTS seq BIGSERIAL`)
	}
	for _, stmt := range stmts {
		stmt = strings.ReplaceAll(stmt, "BIGINT_T", big)
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return storageErr(fmt.Sprintf("migrate: %.40s", stmt), err)
		}
	}
	s.logger.Debug("repository.migrated", "dialect", s.dialect)
	return nil
}

// HealthCheck pings the database, bounded by timeout when positive.
func (s *SQLStore) HealthCheck(ctx context.Context, timeout time.Duration) error {
	s.logger.Debug("pinging database")
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.drv.DB().PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	s.logger.Debug("database ping successful")
	return nil
}
