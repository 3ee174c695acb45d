// Package outbox drains queued replies and hands them to a delivery
// backend. Delivery is decoupled from queueing so the CLI can enqueue
// against the shared database while only the daemon talks to Messages.
package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/appledate"
	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/store"
)

// MessageSender delivers one text to one contact.
type MessageSender interface {
	Send(ctx context.Context, contact, text string) error
}

// Sender polls the outbox and delivers queued replies.
type Sender struct {
	db     *store.DB
	sender MessageSender
	bus    *bus.Bus
	logger *zap.Logger
	poll   time.Duration
	cancel context.CancelFunc
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, sender MessageSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		sender: sender,
		bus:    b,
		logger: logger,
		poll:   2 * time.Second,
	}
}

// Start begins draining the outbox.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Drain processes every queued entry once. Exported so a foreground
// `reply --wait` can flush synchronously instead of waiting out the poll
// interval.
func (s *Sender) Drain(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return
		}
		s.deliver(ctx, entry)
	}
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) {
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sending", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID))
		return
	}

	if err := s.sender.Send(ctx, entry.Contact, entry.Body); err != nil {
		s.logger.Error("delivery failed", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("contact", entry.Contact))
		_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
		s.bus.Publish(bus.Now(bus.KindReplyFailed, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"error":         err.Error(),
		}))
		return
	}

	// Record the outbound row immediately so detection retires the thread
	// without waiting for the next mirror pass. The mirrored copy arrives
	// later under its own source rowid; both rows are outbound in the same
	// thread, so the duplicate is inert.
	sent := &store.Message{
		Contact: entry.Contact,
		Text:    sql.NullString{String: entry.Body, Valid: true},
		RawTS:   sql.NullInt64{Int64: appledate.FromTime(time.Now()), Valid: true},
		FromMe:  true,
	}
	if err := s.db.AppendMessage(sent); err != nil {
		s.logger.Error("failed to record sent reply", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID))
	}

	if entry.ReplyTo.Valid {
		if err := s.db.MarkResponded(entry.ReplyTo.Int64); err != nil {
			s.logger.Warn("failed to mark original responded", zap.Error(err),
				zap.Int64("reply_to", entry.ReplyTo.Int64))
		}
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sent", zap.Error(err),
			zap.String("client_msg_id", entry.ClientMsgID))
	}

	s.logger.Info("reply delivered",
		zap.String("client_msg_id", entry.ClientMsgID),
		zap.String("contact", entry.Contact))
	s.bus.Publish(bus.Now(bus.KindReplySent, map[string]string{
		"client_msg_id": entry.ClientMsgID,
		"contact":       entry.Contact,
	}))
}
