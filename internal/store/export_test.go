package store

import (
	"database/sql"
	"errors"
)

// DB exposes the internal *sql.DB for test helpers in store_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ErrInjectedCommit is returned by FailNextCommit's hook.
var ErrInjectedCommit = errors.New("injected commit failure")

// FailNextCommit makes the next transaction roll back instead of committing.
func (s *Store) FailNextCommit() {
	s.hooks.commit = func(tx *sql.Tx) error {
		s.hooks.commit = nil
		_ = tx.Rollback()
		return ErrInjectedCommit
	}
}
