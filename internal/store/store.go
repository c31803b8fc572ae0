// Package store provides the durable key-value store backing credentials,
// cached stream URLs and the catalog client's own artifacts.
//
// All values are opaque byte slices; consistency is last-writer-wins per key.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sonatura/ytms/internal/shared"
)

// Store is an async key-value persistence surface.
//
// Get returns [shared.ErrNotFound] when the key is absent. Callers treat all
// store failures as best-effort: they log and degrade rather than crash.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SQLiteStore implements [Store] on a single kv table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the kv table on the given database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	schema := `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%w: failed to create kv table: %v", shared.ErrStorage, err)
	}

	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens the database at path and prepares the kv table.
func OpenSQLiteStore(path string, maxOpenConns, maxIdleConns int) (*SQLiteStore, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, maxOpenConns, maxIdleConns)
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", shared.ErrStorage, key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: remove %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv"); err != nil {
		return fmt.Errorf("%w: clear: %v", shared.ErrStorage, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
