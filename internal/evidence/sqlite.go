package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"stagegate/internal/stage"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS evidence (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps evidence in a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	keys   Keys
	dbPath string
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. A nil keys uses [DefaultKeys].
func NewSQLiteStore(path string, keys Keys) (*SQLiteStore, error) {
	if keys == nil {
		keys = DefaultKeys()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize evidence schema: %w", err)
	}

	return &SQLiteStore{db: db, keys: keys, dbPath: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Evidence reports presence for every stage. A failing database ping is a
// store failure.
func (s *SQLiteStore) Evidence(ctx context.Context) (stage.Evidence, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("evidence database unavailable: %w", err)
	}
	return collect(ctx, s.keys, s.Get)
}

// Get returns the data stored under key, or [ErrNotFound].
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM evidence WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence %s: %w", key, err)
	}
	return []byte(data), nil
}

// Put upserts data under key.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("invalid evidence key: %q", key)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("failed to write evidence %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evidence WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete evidence %s: %w", key, err)
	}
	return nil
}
