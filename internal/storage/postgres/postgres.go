// Package postgres stores record collections in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"financas/internal/records"
)

const schema = `
CREATE TABLE IF NOT EXISTS finance_records (
    collection TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS finance_records_revision (
    id       INTEGER PRIMARY KEY CHECK (id = 1),
    revision BIGINT NOT NULL
);
INSERT INTO finance_records_revision (id, revision) VALUES (1, 0)
ON CONFLICT (id) DO NOTHING`

// Store is a records.RecordStore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ records.RecordStore = (*Store)(nil)
	_ records.Closer      = (*Store)(nil)
	_ records.Revisioner  = (*Store)(nil)
)

// PoolConfig parses databaseURL and applies the pool limits used by the service.
func PoolConfig(databaseURL string) (*pgxpool.Config, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	return cfg, nil
}

// Connect opens the pool, verifies connectivity and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := PoolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	slog.InfoContext(ctx, "Connected to PostgreSQL", "max_conns", cfg.MaxConns)
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Get(ctx context.Context, c records.Collection) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload::text FROM finance_records WHERE collection = $1`, string(c)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, c records.Collection, payload []byte) error {
	err := s.write(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO finance_records (collection, payload, updated_at)
			VALUES ($1, $2::jsonb, now())
			ON CONFLICT (collection) DO UPDATE SET
				payload = EXCLUDED.payload,
				updated_at = EXCLUDED.updated_at`,
			string(c), string(payload))
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", c, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	err := s.write(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM finance_records`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.pool.QueryRow(ctx,
		`SELECT revision FROM finance_records_revision WHERE id = 1`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}

// write runs fn and bumps the shared revision in one transaction.
func (s *Store) write(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE finance_records_revision SET revision = revision + 1 WHERE id = 1`)
		return err
	})
}
