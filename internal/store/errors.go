package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned (wrapped in a StorageError) when an operation
// targets a message that does not exist.
var ErrNotFound = errors.New("not found")

// StorageError wraps any fault from the underlying SQLite store. The core
// never retries; callers let it propagate to the CLI boundary.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr wraps err in a StorageError, passing nil through.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
