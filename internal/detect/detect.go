// Package detect computes the reply queue: inbound messages that no later
// outbound message in the same resolved thread has retired. It owns no
// state and recomputes from the store on every call, so results are never
// stale with respect to committed writes.
package detect

import (
	"time"

	"github.com/mpontes/nudge/internal/store"
	"github.com/mpontes/nudge/internal/thread"
)

// Detector finds unresponded inbound messages.
type Detector struct {
	db *store.DB
}

// New creates a detector over the given store.
func New(db *store.DB) *Detector {
	return &Detector{db: db}
}

// Unresponded returns every inbound message in the lookback window for
// which no outbound message in the same thread has a strictly later
// timestamp and whose responded flag is unset, newest first.
//
// Only in-window rows participate: an outbound reply older than the
// window never retires anything, even if the thread extends past the
// window edge. An outbound row with an unknown timestamp retires nothing;
// an inbound row with an unknown timestamp cannot be retired by the
// thread rule and stays pending until marked responded.
func (d *Detector) Unresponded(lookbackDays int) ([]store.Message, error) {
	msgs, err := d.db.MessagesSince(time.Now(), lookbackDays)
	if err != nil {
		return nil, err
	}

	latestOut := make(map[thread.Key]int64)
	for _, m := range msgs {
		if !m.FromMe || !m.RawTS.Valid {
			continue
		}
		k := m.ThreadKey()
		if prev, ok := latestOut[k]; !ok || m.RawTS.Int64 > prev {
			latestOut[k] = m.RawTS.Int64
		}
	}

	var pending []store.Message
	for _, m := range msgs {
		if m.FromMe || m.Responded {
			continue
		}
		if last, ok := latestOut[m.ThreadKey()]; ok && m.RawTS.Valid && last > m.RawTS.Int64 {
			continue
		}
		pending = append(pending, m)
	}
	return pending, nil
}

// Context is the situational information handed to a drafting collaborator
// along with a pending message.
type Context struct {
	PrevText   *string
	NextText   *string
	DailyCount int
}

// Expander enriches single messages with their thread neighborhood and the
// contact's message volume for the current day.
type Expander struct {
	db *store.DB
}

// NewExpander creates an expander over the given store.
func NewExpander(db *store.DB) *Expander {
	return &Expander{db: db}
}

// Expand composes thread neighbors and daily count for one message.
// Pure composition; fails only by propagating store errors.
func (e *Expander) Expand(msgID int64) (*Context, error) {
	m, err := e.db.GetMessage(msgID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &store.StorageError{Op: "expand", Err: store.ErrNotFound}
	}

	n, err := e.db.ThreadNeighbors(msgID)
	if err != nil {
		return nil, err
	}
	// Volume is measured over the current local day, regardless of when
	// the message itself arrived.
	count, err := e.db.DailyCount(m.Contact, time.Now())
	if err != nil {
		return nil, err
	}
	return &Context{PrevText: n.PrevText, NextText: n.NextText, DailyCount: count}, nil
}
