package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the pgx connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresStore keeps entries in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
	own  bool
}

// OpenPostgres connects to url, verifies the connection and creates the
// merge_runs table if needed. Close releases the pool.
func OpenPostgres(ctx context.Context, url string, opts PoolOptions) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.own = true
	return s, nil
}

// NewPostgresStore uses an existing pool. Close does not close it.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS merge_runs (
			id UUID PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			target TEXT NOT NULL,
			sources TEXT[] NOT NULL DEFAULT '{}',
			mode TEXT NOT NULL,
			rows_read INTEGER NOT NULL DEFAULT 0,
			rows_out INTEGER NOT NULL DEFAULT 0,
			duplicates INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_merge_runs_started ON merge_runs(started_at DESC)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Record implements Store.
func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	e = prepare(e)

	_, err := s.pool.Exec(ctx, `INSERT INTO merge_runs
		(id, started_at, finished_at, target, sources, mode, rows_read, rows_out,
		 duplicates, status, error_code, error, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.StartedAt, e.FinishedAt, e.Target, e.Sources, e.Mode,
		e.RowsRead, e.RowsOut, e.Duplicates,
		string(e.Status), e.ErrorCode, e.Error, e.IPAddress, e.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert merge run: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT
		id::text, started_at, finished_at, target, sources, mode, rows_read, rows_out,
		duplicates, status, error_code, error, ip_address, user_agent
		FROM merge_runs ORDER BY started_at DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query merge runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			id, status string
		)
		if err := rows.Scan(&id, &e.StartedAt, &e.FinishedAt, &e.Target, &e.Sources, &e.Mode,
			&e.RowsRead, &e.RowsOut, &e.Duplicates, &status, &e.ErrorCode, &e.Error,
			&e.IPAddress, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("scan merge run: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.own {
		s.pool.Close()
	}
	return nil
}
