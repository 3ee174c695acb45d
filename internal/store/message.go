package store

import (
	"fmt"
	"time"

	"github.com/mpontes/nudge/internal/appledate"
	"github.com/mpontes/nudge/internal/thread"
)

const messageCols = `m.id, m.handle_id, h.external_id, m.text, m.raw_ts, m.from_me,
	m.responded, m.chat_id, m.room_name, m.group_title, m.source_rowid`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(s rowScanner) (Message, error) {
	var m Message
	err := s.Scan(&m.ID, &m.HandleID, &m.Contact, &m.Text, &m.RawTS, &m.FromMe,
		&m.Responded, &m.ChatID, &m.RoomName, &m.GroupTitle, &m.SourceRowID)
	return m, err
}

// AppendMessage inserts a message, creating its handle on first reference.
// Ids ascend in insertion order; the caller's Message gets ID and HandleID
// filled in.
func (db *DB) AppendMessage(m *Message) error {
	tx, err := db.Begin()
	if err != nil {
		return storageErr("append message", err)
	}
	defer func() { _ = tx.Rollback() }()

	handleID, err := upsertHandle(tx, m.Contact)
	if err != nil {
		return storageErr("append message: upsert handle", err)
	}

	res, err := tx.Exec(`
		INSERT INTO messages (handle_id, text, raw_ts, from_me, responded, chat_id, room_name, group_title, source_rowid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		handleID, m.Text, m.RawTS, m.FromMe, m.Responded,
		m.ChatID, m.RoomName, m.GroupTitle, m.SourceRowID, time.Now().UnixMilli())
	if err != nil {
		return storageErr("append message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("append message", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("append message: commit", err)
	}

	m.ID = id
	m.HandleID = handleID
	return nil
}

// AppendBatch inserts mirrored rows in one transaction, idempotent on the
// source ROWID. A re-mirrored row refreshes its text (the source may decode
// a body later than we first saw the row). Returns the number of rows
// processed.
func (db *DB) AppendBatch(msgs []*Message) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, storageErr("append batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for i, m := range msgs {
		handleID, err := upsertHandle(tx, m.Contact)
		if err != nil {
			return 0, storageErr(fmt.Sprintf("append batch row %d: upsert handle", i), err)
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (handle_id, text, raw_ts, from_me, responded, chat_id, room_name, group_title, source_rowid, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_rowid) WHERE source_rowid IS NOT NULL DO UPDATE SET
				text = COALESCE(excluded.text, messages.text)`,
			handleID, m.Text, m.RawTS, m.FromMe, m.Responded,
			m.ChatID, m.RoomName, m.GroupTitle, m.SourceRowID, now); err != nil {
			return 0, storageErr(fmt.Sprintf("append batch row %d", i), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("append batch: commit", err)
	}
	return len(msgs), nil
}

// GetMessage returns a single message by id, nil when absent.
func (db *DB) GetMessage(id int64) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`
		SELECT `+messageCols+`
		FROM messages m JOIN handles h ON h.id = m.handle_id
		WHERE m.id = ?`, id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get message", err)
	}
	return &m, nil
}

// MessagesSince returns every message whose wall-clock date falls within
// the last lookbackDays calendar days (local time), newest first. Rows with
// an unknown timestamp never expire, so they are always in-window; they
// sort after the dated rows.
func (db *DB) MessagesSince(now time.Time, lookbackDays int) ([]Message, error) {
	start := appledate.WindowStart(now, lookbackDays)
	rows, err := db.Query(`
		SELECT `+messageCols+`
		FROM messages m JOIN handles h ON h.id = m.handle_id
		WHERE m.raw_ts IS NULL OR m.raw_ts >= ?
		ORDER BY (m.raw_ts IS NULL) ASC, m.raw_ts DESC, m.id DESC`, start)
	if err != nil {
		return nil, storageErr("messages since", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("messages since: scan", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, storageErr("messages since", rows.Err())
}

// ThreadNeighbors returns the texts of the messages immediately before and
// after the given one within its resolved thread, ordered by raw timestamp.
// Nil pointers mark thread boundaries.
func (db *DB) ThreadNeighbors(msgID int64) (*Neighbors, error) {
	m, err := db.GetMessage(msgID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, storageErr("thread neighbors", fmt.Errorf("message %d: %w", msgID, ErrNotFound))
	}

	siblings, err := db.threadMessages(m.ThreadKey())
	if err != nil {
		return nil, err
	}

	var n Neighbors
	for i := range siblings {
		if siblings[i].ID != msgID {
			continue
		}
		if i > 0 {
			prev := siblings[i-1].Body()
			n.PrevText = &prev
		}
		if i < len(siblings)-1 {
			next := siblings[i+1].Body()
			n.NextText = &next
		}
		break
	}
	return &n, nil
}

// threadMessages returns every message resolving to the given thread key,
// ordered ascending by raw timestamp with unknown-time rows first and
// insertion order as tie-break. The WHERE clause mirrors the resolver's
// precedence: a row only matches a weaker key when every stronger signal
// is absent.
func (db *DB) threadMessages(key thread.Key) ([]Message, error) {
	const noStructured = `(m.chat_id IS NULL OR m.chat_id = '')`
	const noCached = `(m.room_name IS NULL OR m.room_name = '')`
	const noTitle = `(m.group_title IS NULL OR m.group_title = '')`

	var where string
	switch key.Kind {
	case thread.Structured:
		where = `m.chat_id = ?`
	case thread.Cached:
		where = noStructured + ` AND m.room_name = ?`
	case thread.Title:
		where = noStructured + ` AND ` + noCached + ` AND m.group_title = ?`
	default:
		where = noStructured + ` AND ` + noCached + ` AND ` + noTitle + ` AND h.external_id = ?`
	}

	rows, err := db.Query(`
		SELECT `+messageCols+`
		FROM messages m JOIN handles h ON h.id = m.handle_id
		WHERE `+where+`
		ORDER BY (m.raw_ts IS NOT NULL) ASC, m.raw_ts ASC, m.id ASC`, key.Value)
	if err != nil {
		return nil, storageErr("thread messages", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("thread messages: scan", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, storageErr("thread messages", rows.Err())
}

// DailyCount returns how many messages were exchanged with the handle
// during at's local calendar day, both directions.
func (db *DB) DailyCount(externalID string, at time.Time) (int, error) {
	dayStart := appledate.StartOfDay(at)
	start := appledate.FromTime(dayStart)
	end := appledate.FromTime(dayStart.AddDate(0, 0, 1))
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM messages m JOIN handles h ON h.id = m.handle_id
		WHERE h.external_id = ? AND m.raw_ts IS NOT NULL AND m.raw_ts >= ? AND m.raw_ts < ?`,
		externalID, start, end).Scan(&count)
	return count, storageErr("daily count", err)
}

// MarkResponded flags a message as handled. The original direction is
// preserved; detection checks this flag alongside the thread-level
// outbound rule.
func (db *DB) MarkResponded(msgID int64) error {
	res, err := db.Exec(`UPDATE messages SET responded = 1 WHERE id = ?`, msgID)
	if err != nil {
		return storageErr("mark responded", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("mark responded", err)
	}
	if affected == 0 {
		return storageErr("mark responded", fmt.Errorf("message %d: %w", msgID, ErrNotFound))
	}
	return nil
}

// ContactMessages returns recent history with one contact, newest first.
func (db *DB) ContactMessages(externalID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT `+messageCols+`
		FROM messages m JOIN handles h ON h.id = m.handle_id
		WHERE h.external_id = ?
		ORDER BY (m.raw_ts IS NULL) ASC, m.raw_ts DESC, m.id DESC
		LIMIT ?`, externalID, limit)
	if err != nil {
		return nil, storageErr("contact messages", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("contact messages: scan", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, storageErr("contact messages", rows.Err())
}
