// Package store provides the durable local store (C1): SQLite-backed
// tables for users, lessons, progresses and the mutation journal, plus
// per-table change-notification streams.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB configured for the sync core's schema, plus a
// prepared-statement cache and a broadcaster per table.
type Store struct {
	db        *sql.DB
	stmtCache sync.Map // string -> *sql.Stmt

	Users         *Broadcaster
	Lessons       *Broadcaster
	Progresses    *Broadcaster
	JournalCounts *Broadcaster
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	contact TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	duration_min INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS progresses (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	lesson_id TEXT NOT NULL,
	percent INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	status TEXT NOT NULL,
	UNIQUE(user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	operation TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
`

// Open opens (creating if absent) the SQLite database under dataDir,
// applies the fixed schema, and configures WAL mode plus a single writer,
// matching the teacher's internal/db.Open construction. There is no
// migration runner: the schema is fixed for the lifetime of this core.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "edusync.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	s := &Store{
		db:            db,
		Users:         NewBroadcaster(),
		Lessons:       NewBroadcaster(),
		Progresses:    NewBroadcaster(),
		JournalCounts: NewBroadcaster(),
	}
	return s, nil
}

// OpenInMemory opens an in-memory database, useful for tests: each
// transaction, upsert and query works identically to a file-backed store.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("store: open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{
		db:            db,
		Users:         NewBroadcaster(),
		Lessons:       NewBroadcaster(),
		Progresses:    NewBroadcaster(),
		JournalCounts: NewBroadcaster(),
	}, nil
}

// Close releases the database handle and every broadcaster's subscribers.
func (s *Store) Close() error {
	s.Users.Close()
	s.Lessons.Close()
	s.Progresses.Close()
	s.JournalCounts.Close()
	return s.db.Close()
}

// prepareStmt returns a cached prepared statement for query, preparing and
// caching it on first use. Grounded on the teacher's
// internal/db/repository.go PrepareStmt/stmtCache pattern.
func (s *Store) prepareStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if cached, ok := s.stmtCache.Load(query); ok {
		return cached.(*sql.Stmt), nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// WithTx runs fn inside a single transaction, committing on nil error and
// rolling back otherwise. This is the sole mechanism by which multiple
// statements are guaranteed to commit atomically or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
