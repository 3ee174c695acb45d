// Package bus is the in-process publish/subscribe fabric connecting the
// mirror engine, the outbox sender, and the daemon status machine.
package bus

import (
	"strings"
	"sync"
)

// Bus fans events out to subscribers by kind-prefix. Delivery is
// best-effort: a subscriber that falls behind loses events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish sends an event to every subscriber whose prefix matches evt.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber buffer full; drop rather than block.
			}
		}
	}
}

// Subscribe returns a channel receiving events whose kind starts with
// prefix, plus an unsubscribe function. bufSize controls how far a slow
// consumer may lag before losing events.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
