// Package store owns the app-side mirror of the Messages database: the
// handle and message tables, the reply outbox, drafts, and every query the
// detection layer runs. It is the only package that touches nudge.db.
package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite connection to the app-owned nudge.db.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
// WAL lets nudgectl read while the daemon writes.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &StorageError{Op: "ping", Err: err}
	}
	return &DB{db}, nil
}
