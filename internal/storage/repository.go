package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financas/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists record collections in a single SQLite table.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ records.RecordStore = (*SQLiteRepository)(nil)
	_ records.Closer      = (*SQLiteRepository)(nil)
	_ records.Revisioner  = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateUp(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Get(ctx context.Context, c records.Collection) ([]byte, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE collection = ?`, string(c)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	return []byte(payload), nil
}

func (r *SQLiteRepository) Set(ctx context.Context, c records.Collection, payload []byte) error {
	err := r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, payload, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(collection) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at`,
			string(c), string(payload))
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", c, err)
	}
	slog.DebugContext(ctx, "Collection saved to SQLite", "collection", c, "bytes", len(payload))
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	err := r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM records`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	slog.InfoContext(ctx, "All collections cleared")
	return nil
}

// Revision returns the write counter shared by every process using this file.
func (r *SQLiteRepository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := r.db.QueryRowContext(ctx,
		`SELECT revision FROM records_revision WHERE id = 1`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}

// write runs fn and bumps the revision in one transaction.
func (r *SQLiteRepository) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records_revision SET revision = revision + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	return tx.Commit()
}
