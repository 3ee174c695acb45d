package store

import (
	"database/sql"
	"time"
)

// QueueOutbox adds a reply to the send outbox. replyTo, when non-nil,
// names the inbound message this reply retires once delivered.
func (db *DB) QueueOutbox(clientMsgID, contact, body string, replyTo *int64) error {
	now := time.Now().UnixMilli()
	var rt sql.NullInt64
	if replyTo != nil {
		rt = sql.NullInt64{Int64: *replyTo, Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, contact, body, reply_to, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, contact, body, rt, now, now)
	return storageErr("queue outbox", err)
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return storageErr("mark outbox sending", err)
}

// MarkOutboxSent updates an outbox entry to 'sent'.
func (db *DB) MarkOutboxSent(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return storageErr("mark outbox sent", err)
}

// MarkOutboxFailed updates an outbox entry to 'failed' with the delivery error.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return storageErr("mark outbox failed", err)
}

// PendingOutbox returns outbox entries that are still queued, oldest first.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, contact, body, reply_to, status, COALESCE(error_message, '')
		FROM outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, storageErr("pending outbox", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.Contact, &e.Body, &e.ReplyTo, &e.Status, &e.ErrorMessage); err != nil {
			return nil, storageErr("pending outbox: scan", err)
		}
		entries = append(entries, e)
	}
	return entries, storageErr("pending outbox", rows.Err())
}
