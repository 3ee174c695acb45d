package store

import (
	"database/sql"
	"time"
)

// execer abstracts *DB and *sql.Tx so handle upserts work inside batches.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// upsertHandle returns the internal id for an external contact id,
// creating the handle on first reference. Handles are never deleted.
func upsertHandle(e execer, externalID string) (int64, error) {
	_, err := e.Exec(`
		INSERT INTO handles (external_id, created_at)
		VALUES (?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		externalID, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	var id int64
	if err := e.QueryRow(`SELECT id FROM handles WHERE external_id = ?`, externalID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetHandle returns a handle by external id, nil when unknown.
func (db *DB) GetHandle(externalID string) (*Handle, error) {
	var h Handle
	err := db.QueryRow(`SELECT id, external_id FROM handles WHERE external_id = ?`, externalID).
		Scan(&h.ID, &h.ExternalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get handle", err)
	}
	return &h, nil
}

// HandleCount returns the total number of handles.
func (db *DB) HandleCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM handles`).Scan(&count)
	return count, storageErr("handle count", err)
}

// MessageCount returns the total number of mirrored messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, storageErr("message count", err)
}
