package store

import "time"

// AddDraft appends a draft to the registry and returns its id. Drafts are
// append-only; review happens in the CLI, deletion does not exist.
func (db *DB) AddDraft(contact, body string) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO drafts (contact, body, created_at) VALUES (?, ?, ?)`,
		contact, body, time.Now().UnixMilli())
	if err != nil {
		return 0, storageErr("add draft", err)
	}
	id, err := res.LastInsertId()
	return id, storageErr("add draft", err)
}

// GetDraft returns a draft by id, nil when absent.
func (db *DB) GetDraft(id int64) (*Draft, error) {
	var d Draft
	err := db.QueryRow(`SELECT id, contact, body FROM drafts WHERE id = ?`, id).
		Scan(&d.ID, &d.Contact, &d.Body)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get draft", err)
	}
	return &d, nil
}

// ListDrafts returns all drafts, newest first.
func (db *DB) ListDrafts() ([]Draft, error) {
	rows, err := db.Query(`SELECT id, contact, body FROM drafts ORDER BY id DESC`)
	if err != nil {
		return nil, storageErr("list drafts", err)
	}
	defer func() { _ = rows.Close() }()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.Contact, &d.Body); err != nil {
			return nil, storageErr("list drafts: scan", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, storageErr("list drafts", rows.Err())
}
