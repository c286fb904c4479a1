// Package store persists users, routines and steps in SQLite.
//
// It is the storage collaborator of the resequencer: it supplies the
// current step collection of a routine, hands it to internal/resequence,
// and writes the resulting positions back in one transaction. All writes
// go through a single connection, so read-modify-write cycles on the same
// routine never interleave.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

var (
	// ErrNotFound is returned when a user, routine or step does not exist
	// or is not owned by the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with existing data: a
	// duplicate email, or a routine changed since the caller read it.
	ErrConflict = errors.New("conflict")

	// ErrLimitExceeded is returned when a user's tier does not allow
	// another routine or step.
	ErrLimitExceeded = errors.New("tier limit exceeded")
)

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".routinequest")}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the routine quest persistence layer backed by SQLite.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type storeHooks struct {
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "routinequest.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// One connection: pragmas apply to every statement, and writers are
	// serialized by the pool instead of by SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, hooks: defaultStoreHooks()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			email        TEXT    NOT NULL UNIQUE,
			display_name TEXT    NOT NULL DEFAULT '',
			tier         TEXT    NOT NULL DEFAULT 'free'
			             CHECK (tier IN ('free', 'basic', 'pro', 'team')),
			timezone     TEXT    NOT NULL DEFAULT 'Asia/Seoul',
			streak       INTEGER NOT NULL DEFAULT 0,
			grace_tokens INTEGER NOT NULL DEFAULT 1,
			total_xp     INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at   TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS routines (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id             INTEGER NOT NULL,
			title               TEXT    NOT NULL,
			description         TEXT    NOT NULL DEFAULT '',
			icon                TEXT    NOT NULL DEFAULT '🎯',
			color               TEXT    NOT NULL DEFAULT '#6366F1',
			is_public           INTEGER NOT NULL DEFAULT 0,
			is_active           INTEGER NOT NULL DEFAULT 1,
			today_display       INTEGER NOT NULL DEFAULT 0,
			version             INTEGER NOT NULL DEFAULT 1,
			total_completions   INTEGER NOT NULL DEFAULT 0,
			success_rate        INTEGER NOT NULL DEFAULT 0,
			avg_completion_time INTEGER NOT NULL DEFAULT 0,
			created_at          TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at          TEXT    NOT NULL DEFAULT (datetime('now')),
			last_changed_at     TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_routines_user ON routines(user_id);

		CREATE TABLE IF NOT EXISTS steps (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			routine_id       INTEGER NOT NULL,
			position         INTEGER NOT NULL,
			title            TEXT    NOT NULL,
			description      TEXT    NOT NULL DEFAULT '',
			type             TEXT    NOT NULL DEFAULT 'action'
			                 CHECK (type IN ('action', 'timer', 'check', 'habit')),
			difficulty       TEXT    NOT NULL DEFAULT 'easy'
			                 CHECK (difficulty IN ('easy', 'medium', 'hard')),
			t_ref_sec        INTEGER NOT NULL DEFAULT 120,
			is_optional      INTEGER NOT NULL DEFAULT 0,
			xp_reward        INTEGER NOT NULL DEFAULT 10,
			completion_count INTEGER NOT NULL DEFAULT 0,
			skip_count       INTEGER NOT NULL DEFAULT 0,
			avg_time_spent   INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at       TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (routine_id) REFERENCES routines(id) ON DELETE CASCADE
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_steps_position ON steps(routine_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Transactions ────────────────────────────────────────────────────────────

// withTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back on any error or panic, so callers never
// observe a partially applied write.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound maps sql.ErrNoRows to ErrNotFound, naming what was missing.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: %s %d: %w", what, id, ErrNotFound)
	}
	return err
}
