package outbox

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/appledate"
	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/store"
)

// mockSender records calls and returns a configurable error.
type mockSender struct {
	calls []sendCall
	err   error
}

type sendCall struct {
	Contact string
	Text    string
}

func (m *mockSender) Send(_ context.Context, contact, text string) error {
	m.calls = append(m.calls, sendCall{Contact: contact, Text: text})
	return m.err
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedInbound(t *testing.T, db *store.DB, contact, text string) int64 {
	t.Helper()
	m := &store.Message{
		Contact: contact,
		Text:    sql.NullString{String: text, Valid: true},
		RawTS:   sql.NullInt64{Int64: appledate.FromTime(time.Now().Add(-time.Hour)), Valid: true},
	}
	if err := db.AppendMessage(m); err != nil {
		t.Fatal(err)
	}
	return m.ID
}

func outboxStatus(t *testing.T, db *store.DB, clientMsgID string) (string, string) {
	t.Helper()
	var status string
	var errMsg sql.NullString
	err := db.QueryRow(`SELECT status, error_message FROM outbox WHERE client_msg_id = ?`, clientMsgID).
		Scan(&status, &errMsg)
	if err != nil {
		t.Fatal(err)
	}
	return status, errMsg.String
}

func TestDrainDeliversQueuedReply(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{}
	s := NewSender(db, mock, b, zap.NewNop())

	events, unsub := b.Subscribe("reply.", 10)
	defer unsub()

	origID := seedInbound(t, db, "+15550001111", "you free tomorrow?")
	if err := db.QueueOutbox("cid-1", "+15550001111", "yes, after 3", &origID); err != nil {
		t.Fatal(err)
	}

	s.Drain(context.Background())

	if len(mock.calls) != 1 {
		t.Fatalf("sender called %d times", len(mock.calls))
	}
	if mock.calls[0].Contact != "+15550001111" || mock.calls[0].Text != "yes, after 3" {
		t.Errorf("unexpected call: %+v", mock.calls[0])
	}

	if status, _ := outboxStatus(t, db, "cid-1"); status != "sent" {
		t.Errorf("outbox status = %q, want sent", status)
	}

	// The delivered reply lands in the store as an outbound row.
	n, err := db.MessageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("message count = %d, want 2", n)
	}

	orig, err := db.GetMessage(origID)
	if err != nil {
		t.Fatal(err)
	}
	if !orig.Responded {
		t.Error("original inbound message not marked responded")
	}

	select {
	case evt := <-events:
		if evt.Kind != bus.KindReplySent {
			t.Errorf("event kind = %q", evt.Kind)
		}
	default:
		t.Error("no reply.sent event published")
	}
}

func TestDrainRecordsFailure(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	mock := &mockSender{err: errors.New("Messages not signed in")}
	s := NewSender(db, mock, b, zap.NewNop())

	events, unsub := b.Subscribe("reply.failed", 10)
	defer unsub()

	origID := seedInbound(t, db, "+15550001111", "ping")
	if err := db.QueueOutbox("cid-1", "+15550001111", "pong", &origID); err != nil {
		t.Fatal(err)
	}

	s.Drain(context.Background())

	status, errMsg := outboxStatus(t, db, "cid-1")
	if status != "failed" {
		t.Errorf("outbox status = %q, want failed", status)
	}
	if errMsg != "Messages not signed in" {
		t.Errorf("error message = %q", errMsg)
	}

	// A failed delivery must not fabricate an outbound row or retire the
	// original.
	n, _ := db.MessageCount()
	if n != 1 {
		t.Errorf("message count = %d, want 1", n)
	}
	orig, err := db.GetMessage(origID)
	if err != nil {
		t.Fatal(err)
	}
	if orig.Responded {
		t.Error("failed delivery marked original responded")
	}

	select {
	case evt := <-events:
		if evt.Kind != bus.KindReplyFailed {
			t.Errorf("event kind = %q", evt.Kind)
		}
	default:
		t.Error("no reply.failed event published")
	}
}

func TestDrainDeliversOldestFirst(t *testing.T) {
	db := testDB(t)
	mock := &mockSender{}
	s := NewSender(db, mock, bus.New(), zap.NewNop())

	if err := db.QueueOutbox("cid-1", "+15550001111", "first", nil); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("cid-2", "+15550002222", "second", nil); err != nil {
		t.Fatal(err)
	}

	s.Drain(context.Background())

	if len(mock.calls) != 2 {
		t.Fatalf("sender called %d times", len(mock.calls))
	}
	if mock.calls[0].Text != "first" || mock.calls[1].Text != "second" {
		t.Errorf("out of order: %+v", mock.calls)
	}
}

func TestDeliveryErrorWrapsCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &DeliveryError{Contact: "+15550001111", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("DeliveryError does not unwrap to its cause")
	}
}
