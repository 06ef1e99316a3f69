// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists resolved paper metadata in SQLite so repeated
// runs do not query external sources for identifiers already resolved.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Store is a SQLite-backed metadata cache keyed by normalized identifier.
// It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path. The special path
// ":memory:" gives a private in-memory cache.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating cache directory: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// One connection: writes serialize anyway, and ":memory:" is
	// per-connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			doi TEXT,
			title TEXT,
			record TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_doi ON metadata(doi)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Get returns the cached record for key. The boolean is false on a miss.
func (s *Store) Get(ctx context.Context, key string) (types.PaperMetadata, bool, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM metadata WHERE key = ?`, key).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PaperMetadata{}, false, nil
	}
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("querying cache: %w", err)
	}

	var m types.PaperMetadata
	if err := json.Unmarshal([]byte(record), &m); err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("decoding cached record %s: %w", key, err)
	}
	return m, true, nil
}

// Put stores m under key, replacing any previous record.
func (s *Store) Put(ctx context.Context, key string, m types.PaperMetadata) error {
	record, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, source, doi, title, record, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			source = excluded.source,
			doi = excluded.doi,
			title = excluded.title,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		key, m.Source, m.DOI, m.Title, string(record), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cache: %w", err)
	}
	return n, nil
}
