package store

import "time"

// SetCheckpoint stores a mirror checkpoint value.
func (db *DB) SetCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return storageErr("set checkpoint", err)
}

// GetCheckpoint retrieves a mirror checkpoint value, empty when unset.
func (db *DB) GetCheckpoint(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if isNoRows(err) {
		return "", nil
	}
	return value, storageErr("get checkpoint", err)
}
