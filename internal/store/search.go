package store

import "errors"

// ErrSearchUnavailable is returned when the schema was provisioned without
// the FTS5 table because the linked SQLite lacks the module.
var ErrSearchUnavailable = errors.New("full-text search unavailable: SQLite built without FTS5 (rebuild with -tags sqlite_fts5)")

// SearchMessages performs a full-text search on message bodies, optionally
// restricted to one contact.
func (db *DB) SearchMessages(query string, contact string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var one int
	err := db.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'messages_fts'`).Scan(&one)
	if isNoRows(err) {
		return nil, storageErr("search messages", ErrSearchUnavailable)
	}
	if err != nil {
		return nil, storageErr("search messages", err)
	}

	q := `
		SELECT ` + messageCols + `,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		JOIN handles h ON h.id = m.handle_id
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if contact != "" {
		q += " AND h.external_id = ?"
		args = append(args, contact)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, storageErr("search messages", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Message.ID, &r.Message.HandleID, &r.Message.Contact,
			&r.Message.Text, &r.Message.RawTS, &r.Message.FromMe,
			&r.Message.Responded, &r.Message.ChatID, &r.Message.RoomName,
			&r.Message.GroupTitle, &r.Message.SourceRowID, &r.Snippet,
		); err != nil {
			return nil, storageErr("search messages: scan", err)
		}
		results = append(results, r)
	}
	return results, storageErr("search messages", rows.Err())
}
