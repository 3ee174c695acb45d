// Package reply is the application layer over detection: it lists what
// needs an answer, drafts and suggests replies, and queues deliveries.
package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpontes/nudge/internal/bus"
	"github.com/mpontes/nudge/internal/detect"
	"github.com/mpontes/nudge/internal/store"
)

// TextGenerator produces a reply suggestion for a prompt.
type TextGenerator interface {
	Suggest(ctx context.Context, prompt string) (string, error)
}

// Item is one unresponded message with its expanded context.
type Item struct {
	Message store.Message
	Context *detect.Context
}

// Service composes the detector, the context expander, and the outbox
// queue behind one API used by the daemon and the CLI.
type Service struct {
	db     *store.DB
	det    *detect.Detector
	exp    *detect.Expander
	gen    TextGenerator
	bus    *bus.Bus
	logger *zap.Logger
}

// NewService creates the reply service. gen may be nil; Suggest then
// returns an error instead of a suggestion.
func NewService(db *store.DB, gen TextGenerator, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		det:    detect.New(db),
		exp:    detect.NewExpander(db),
		gen:    gen,
		bus:    b,
		logger: logger,
	}
}

// Pending returns every unresponded inbound message in the lookback
// window, newest first, each with its thread context. Context expansion
// is best effort; an item with a nil Context is still actionable.
func (s *Service) Pending(lookbackDays int) ([]Item, error) {
	msgs, err := s.det.Unresponded(lookbackDays)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(msgs))
	for _, m := range msgs {
		c, err := s.exp.Expand(m.ID)
		if err != nil {
			s.logger.Warn("context expansion failed", zap.Int64("msg_id", m.ID), zap.Error(err))
			c = nil
		}
		items = append(items, Item{Message: m, Context: c})
	}
	return items, nil
}

// History returns the most recent messages exchanged with a contact.
func (s *Service) History(contact string, limit int) ([]store.Message, error) {
	return s.db.ContactMessages(contact, limit)
}

// Draft saves a reply for later review without queueing delivery.
func (s *Service) Draft(contact, body string) (int64, error) {
	return s.db.AddDraft(contact, body)
}

// Drafts lists saved drafts, newest first.
func (s *Service) Drafts() ([]store.Draft, error) {
	return s.db.ListDrafts()
}

// Send queues a reply for delivery and returns the client message id.
// replyTo, when non-nil, is the inbound message this reply answers; it is
// marked responded once delivery succeeds.
func (s *Service) Send(contact, body string, replyTo *int64) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("refusing to queue empty reply to %s", contact)
	}

	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(clientMsgID, contact, body, replyTo); err != nil {
		return "", err
	}

	s.logger.Info("reply queued",
		zap.String("client_msg_id", clientMsgID),
		zap.String("contact", contact))
	s.bus.Publish(bus.Now(bus.KindReplyQueued, map[string]string{
		"client_msg_id": clientMsgID,
		"contact":       contact,
	}))
	return clientMsgID, nil
}

// Answer queues a reply to a specific unresponded message, resolving the
// contact from the message itself.
func (s *Service) Answer(msgID int64, body string) (string, error) {
	m, err := s.db.GetMessage(msgID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", fmt.Errorf("no message with id %d", msgID)
	}
	if m.FromMe {
		return "", fmt.Errorf("message %d is outbound, nothing to answer", msgID)
	}
	return s.Send(m.Contact, body, &msgID)
}

// Suggest asks the generator for a reply to one message, feeding it the
// surrounding thread context.
func (s *Service) Suggest(ctx context.Context, msgID int64) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("no text generator configured")
	}

	m, err := s.db.GetMessage(msgID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", fmt.Errorf("no message with id %d", msgID)
	}

	c, err := s.exp.Expand(msgID)
	if err != nil {
		return "", err
	}

	suggestion, err := s.gen.Suggest(ctx, buildPrompt(m, c))
	if err != nil {
		return "", fmt.Errorf("generate suggestion: %w", err)
	}
	return strings.TrimSpace(suggestion), nil
}

func buildPrompt(m *store.Message, c *detect.Context) string {
	var b strings.Builder
	b.WriteString("You draft short text-message replies. Reply with the message text only, no commentary.\n\n")
	fmt.Fprintf(&b, "Conversation with %s", m.Contact)
	if m.GroupTitle.Valid {
		fmt.Fprintf(&b, " in the group %q", m.GroupTitle.String)
	}
	b.WriteString(".\n")
	if c != nil {
		if c.PrevText != nil {
			fmt.Fprintf(&b, "Earlier message: %s\n", *c.PrevText)
		}
		fmt.Fprintf(&b, "You have exchanged %d messages with them today.\n", c.DailyCount)
	}
	fmt.Fprintf(&b, "\nThey wrote: %s\n\nYour reply:", m.Body())
	return b.String()
}
