package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mpontes/nudge/internal/appledate"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// msg builds a dated message for tests.
func msg(contact, text string, at time.Time, fromMe bool) *Message {
	return &Message{
		Contact: contact,
		Text:    sql.NullString{String: text, Valid: true},
		RawTS:   sql.NullInt64{Int64: appledate.FromTime(at), Valid: true},
		FromMe:  fromMe,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	// The schema advances through the FTS migration only when the linked
	// SQLite carries the module (mattn builds it under -tags sqlite_fts5).
	want := uint(1)
	if result.FTS {
		want = 2
	}
	if result.Version != want {
		t.Errorf("version = %d, want %d (fts=%v)", result.Version, want, result.FTS)
	}
}

// Migration must not depend on FTS5: a plain build still gets a fully
// working message store, it just stops short of the search table.
func TestMigrateWorksWithoutFTS5(t *testing.T) {
	db := testDB(t)

	fts, err := db.fts5Available()
	if err != nil {
		t.Fatal(err)
	}

	var one int
	err = db.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'messages_fts'`).Scan(&one)
	switch {
	case fts && err != nil:
		t.Errorf("fts5 available but messages_fts missing: %v", err)
	case !fts && !isNoRows(err):
		t.Errorf("fts5 unavailable but messages_fts probe returned %v", err)
	}

	// Inserts must work either way; an FTS trigger referencing a missing
	// module would fail right here.
	if err := db.AppendMessage(msg("alice@x", "hi", time.Now(), false)); err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}
}

func TestAppendMessageCreatesHandle(t *testing.T) {
	db := testDB(t)

	m := msg("alice@example.com", "hi", time.Now(), false)
	if err := db.AppendMessage(m); err != nil {
		t.Fatal(err)
	}
	if m.ID == 0 {
		t.Error("message id not assigned")
	}

	h, err := db.GetHandle("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if h == nil || h.ID != m.HandleID {
		t.Errorf("handle = %+v, want id %d", h, m.HandleID)
	}

	// Same contact again must reuse the handle.
	m2 := msg("alice@example.com", "again", time.Now(), true)
	if err := db.AppendMessage(m2); err != nil {
		t.Fatal(err)
	}
	if m2.HandleID != m.HandleID {
		t.Errorf("handle ids differ: %d vs %d", m2.HandleID, m.HandleID)
	}
	if m2.ID <= m.ID {
		t.Errorf("ids must ascend in insertion order: %d then %d", m.ID, m2.ID)
	}
}

func TestMessagesSinceWindowBoundary(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	onBoundary := msg("a@x", "boundary", appledate.StartOfDay(now).AddDate(0, 0, -14).Add(time.Hour), false)
	tooOld := msg("a@x", "too old", appledate.StartOfDay(now).AddDate(0, 0, -15).Add(time.Hour), false)
	recent := msg("a@x", "recent", now.Add(-time.Hour), false)
	for _, m := range []*Message{onBoundary, tooOld, recent} {
		if err := db.AppendMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.MessagesSince(now, 14)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// Descending by timestamp.
	if msgs[0].Body() != "recent" || msgs[1].Body() != "boundary" {
		t.Errorf("order = %q, %q", msgs[0].Body(), msgs[1].Body())
	}
}

func TestMessagesSinceIncludesUndatedRows(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	if err := db.AppendMessage(msg("a@x", "dated", now, false)); err != nil {
		t.Fatal(err)
	}
	undated := &Message{Contact: "a@x", Text: sql.NullString{String: "undated", Valid: true}}
	if err := db.AppendMessage(undated); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.MessagesSince(now, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (unknown-time rows never expire)", len(msgs))
	}
	if msgs[len(msgs)-1].Body() != "undated" {
		t.Error("undated row should sort after dated rows")
	}
}

func TestThreadNeighbors(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)

	first := msg("alice@x", "one", base, false)
	middle := msg("alice@x", "two", base.Add(time.Minute), true)
	last := msg("alice@x", "three", base.Add(2*time.Minute), false)
	// A different direct thread must not leak into the neighborhood.
	other := msg("bob@x", "noise", base.Add(30*time.Second), false)
	for _, m := range []*Message{first, middle, last, other} {
		if err := db.AppendMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.ThreadNeighbors(middle.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n.PrevText == nil || *n.PrevText != "one" {
		t.Errorf("prev = %v, want one", n.PrevText)
	}
	if n.NextText == nil || *n.NextText != "three" {
		t.Errorf("next = %v, want three", n.NextText)
	}

	n, err = db.ThreadNeighbors(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n.PrevText != nil {
		t.Errorf("prev at thread start = %q, want nil", *n.PrevText)
	}
	if n.NextText == nil || *n.NextText != "two" {
		t.Errorf("next = %v, want two", n.NextText)
	}
}

func TestThreadNeighborsGroupBeatsDirect(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)

	// Same sender, but one row carries a structured chat id: different thread.
	direct := msg("alice@x", "direct", base, false)
	grouped := msg("alice@x", "grouped", base.Add(time.Minute), false)
	grouped.ChatID = sql.NullString{String: "chat42", Valid: true}
	grouped2 := msg("carol@x", "grouped too", base.Add(2*time.Minute), false)
	grouped2.ChatID = sql.NullString{String: "chat42", Valid: true}
	for _, m := range []*Message{direct, grouped, grouped2} {
		if err := db.AppendMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.ThreadNeighbors(grouped.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n.PrevText != nil {
		t.Errorf("group thread must not include the direct row, got prev %q", *n.PrevText)
	}
	if n.NextText == nil || *n.NextText != "grouped too" {
		t.Errorf("next = %v, want grouped too", n.NextText)
	}
}

func TestThreadNeighborsUnknownMessage(t *testing.T) {
	db := testDB(t)
	_, err := db.ThreadNeighbors(12345)
	if err == nil {
		t.Fatal("expected error for unknown message")
	}
	var se *StorageError
	if !errors.As(err, &se) || !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want StorageError wrapping ErrNotFound", err)
	}
}

func TestDailyCount(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	today := appledate.StartOfDay(now).Add(2 * time.Hour)
	yesterday := appledate.StartOfDay(now).Add(-3 * time.Hour)

	for i, at := range []time.Time{today, today.Add(time.Minute), today.Add(2 * time.Minute), yesterday, yesterday.Add(time.Minute)} {
		fromMe := i == 1 // mix directions: both count
		if err := db.AppendMessage(msg("alice@x", "m", at, fromMe)); err != nil {
			t.Fatal(err)
		}
	}

	count, err := db.DailyCount("alice@x", now)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("daily count = %d, want 3", count)
	}
}

func TestMarkRespondedPreservesDirection(t *testing.T) {
	db := testDB(t)

	m := msg("alice@x", "hi", time.Now(), false)
	if err := db.AppendMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkResponded(m.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMessage(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Responded {
		t.Error("responded flag not set")
	}
	if got.FromMe {
		t.Error("direction flag must not be rewritten when marking responded")
	}
}

func TestMarkRespondedUnknownMessage(t *testing.T) {
	db := testDB(t)
	err := db.MarkResponded(99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestContactMessagesLimit(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		if err := db.AppendMessage(msg("alice@x", "m", base.Add(time.Duration(i)*time.Minute), false)); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.AppendMessage(msg("bob@x", "other", base, false)); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ContactMessages("alice@x", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for _, m := range msgs {
		if m.Contact != "alice@x" {
			t.Errorf("leaked message from %q", m.Contact)
		}
	}
}

func TestAppendBatchIdempotentOnSourceRowID(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	row := msg("alice@x", "", now, false)
	row.Text = sql.NullString{} // text unknown on first pass
	row.SourceRowID = sql.NullInt64{Int64: 101, Valid: true}
	if _, err := db.AppendBatch([]*Message{row}); err != nil {
		t.Fatal(err)
	}

	// Second mirror pass carries the decoded text.
	again := msg("alice@x", "decoded now", now, false)
	again.SourceRowID = sql.NullInt64{Int64: 101, Valid: true}
	if _, err := db.AppendBatch([]*Message{again}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ContactMessages("alice@x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent on source rowid)", len(msgs))
	}
	if msgs[0].Body() != "decoded now" {
		t.Errorf("body = %q, want refreshed text", msgs[0].Body())
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	m := msg("alice@x", "hi", time.Now(), false)
	if err := db.AppendMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("c1", "alice@x", "on my way", &m.ID); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ClientMsgID != "c1" {
		t.Fatalf("pending = %+v, want one entry c1", pending)
	}
	if !pending[0].ReplyTo.Valid || pending[0].ReplyTo.Int64 != m.ID {
		t.Errorf("reply_to = %+v, want %d", pending[0].ReplyTo, m.ID)
	}

	if err := db.MarkOutboxSending("c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("c1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
}

func TestDrafts(t *testing.T) {
	db := testDB(t)

	id, err := db.AddDraft("alice@x", "sounds good!")
	if err != nil {
		t.Fatal(err)
	}
	d, err := db.GetDraft(id)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.Body != "sounds good!" {
		t.Errorf("draft = %+v", d)
	}

	if _, err := db.AddDraft("bob@x", "later"); err != nil {
		t.Fatal(err)
	}
	drafts, err := db.ListDrafts()
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 2 || drafts[0].Contact != "bob@x" {
		t.Errorf("drafts = %+v, want newest first", drafts)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	db := testDB(t)

	v, err := db.GetCheckpoint("mirror.rowid")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset checkpoint = %q, want empty", v)
	}
	if err := db.SetCheckpoint("mirror.rowid", "42"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCheckpoint("mirror.rowid", "99"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetCheckpoint("mirror.rowid")
	if err != nil {
		t.Fatal(err)
	}
	if v != "99" {
		t.Errorf("checkpoint = %q, want 99", v)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	if err := db.AppendMessage(msg("alice@x", "dinner on friday?", now, false)); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendMessage(msg("bob@x", "dinner next week", now, false)); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("dinner", "alice@x", 10)
	if fts, _ := db.fts5Available(); !fts {
		if !errors.Is(err, ErrSearchUnavailable) {
			t.Fatalf("err = %v, want ErrSearchUnavailable on a non-FTS build", err)
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message.Contact != "alice@x" {
		t.Errorf("contact = %q", results[0].Message.Contact)
	}
}
