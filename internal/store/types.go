package store

import (
	"database/sql"
	"time"

	"github.com/mpontes/nudge/internal/appledate"
	"github.com/mpontes/nudge/internal/thread"
)

// Handle is a contact identity (phone number or email-style address).
// Created implicitly on first message, never deleted.
type Handle struct {
	ID         int64
	ExternalID string
}

// Message is a single mirrored inbound or outbound event. The three
// nullable group fields are the weak identity signals the thread resolver
// coalesces; Text and RawTS are nullable because chat.db allows both.
type Message struct {
	ID          int64
	HandleID    int64
	Contact     string // handle external id, joined on read
	Text        sql.NullString
	RawTS       sql.NullInt64 // Apple-epoch nanoseconds
	FromMe      bool
	Responded   bool
	ChatID      sql.NullString // structured chat identifier
	RoomName    sql.NullString // cached room name
	GroupTitle  sql.NullString // free-text group title
	SourceRowID sql.NullInt64  // ROWID in the source chat.db, for mirror idempotency
}

// ThreadKey resolves the message's conversation identity.
func (m *Message) ThreadKey() thread.Key {
	return thread.Resolve(m.Contact, m.ChatID.String, m.RoomName.String, m.GroupTitle.String)
}

// When returns the message's wall-clock time. ok is false when the raw
// timestamp is NULL, meaning the time is unknown.
func (m *Message) When() (time.Time, bool) {
	if !m.RawTS.Valid {
		return time.Time{}, false
	}
	return appledate.ToTime(m.RawTS.Int64), true
}

// Body returns the plain text, empty when NULL.
func (m *Message) Body() string {
	return m.Text.String
}

// Draft is one entry in the append-only draft registry.
type Draft struct {
	ID      int64
	Contact string
	Body    string
}

// OutboxEntry is a queued reply awaiting delivery.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	Contact      string
	Body         string
	ReplyTo      sql.NullInt64 // message id the reply retires, if any
	Status       string        // queued, sending, sent, failed
	ErrorMessage string
}

// Neighbors holds the thread-adjacent message texts around one message.
// A nil pointer marks a thread boundary.
type Neighbors struct {
	PrevText *string
	NextText *string
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
