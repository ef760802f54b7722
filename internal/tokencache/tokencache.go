// Package tokencache provides an optional, durable cache for an auth
// strategy's bearer credential, so a process restart does not force a
// fresh login/token exchange. It never persists consumer offsets or
// commit-log state — that remains the server's responsibility per
// spec.md's non-goals; this package only ever stores a credential string.
//
// Adapted from the teacher's internal/state.Store: same SQLite-with-
// memory-fallback shape (modernc.org/sqlite, WAL pragma, busy timeout),
// generalized from a token_project mapping to a token_key -> cached_token
// mapping.
package tokencache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"dxlstream/internal/utils"
)

// Store persists cached credentials keyed by an arbitrary strategy-chosen
// identity (e.g. a hash of client id + base URL).
type Store struct {
	db  *sql.DB
	mem map[string]string
	mu  sync.RWMutex
}

// Open opens (or creates) a SQLite-backed store at path. If the database
// cannot be opened or its schema cannot be applied, a memory-only Store is
// returned instead. A schema failure returns that Store with a nil error;
// a failure to expand the path, create its directory or open the driver
// returns the memory-only Store together with the error.
func Open(path string) (*Store, error) {
	s := &Store{mem: make(map[string]string)}
	path, err := utils.ExpandUser(path)
	if err != nil {
		return s, fmt.Errorf("tokencache: expand path: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return s, fmt.Errorf("tokencache: prepare dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return s, fmt.Errorf("tokencache: open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		// Non-fatal; WAL is an optimization, not a correctness requirement.
	}
	if err := s.init(db); err != nil {
		_ = db.Close()
		return s, nil
	}
	s.db = db
	return s, nil
}

func (s *Store) init(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cached_token (
  token_key TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`)
	return err
}

// Close releases the underlying database handle, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the cached token for key, and whether it was found.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		s.mu.RLock()
		tok, ok := s.mem[key]
		s.mu.RUnlock()
		return tok, ok, nil
	}
	var tok string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM cached_token WHERE token_key = ?`, key).Scan(&tok)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tok, true, nil
}

// Set stores or updates the cached token for key.
func (s *Store) Set(ctx context.Context, key, token string) error {
	if s.db == nil {
		s.mu.Lock()
		s.mem[key] = token
		s.mu.Unlock()
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cached_token (token_key, token, updated_at) VALUES (?, ?, ?)
ON CONFLICT(token_key) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		key, token, time.Now())
	return err
}

// Forget removes any cached token for key, e.g. when a Strategy's Reset is
// called.
func (s *Store) Forget(ctx context.Context, key string) error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, key)
		s.mu.Unlock()
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM cached_token WHERE token_key = ?`, key)
	return err
}
