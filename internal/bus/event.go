package bus

import "time"

// Event kinds published across the daemon. Subscribers filter by prefix,
// so related kinds share a dotted namespace.
const (
	KindMirrorBatch   = "mirror.batch"  // a mirror pass ingested rows
	KindMirrorFailed  = "mirror.failed" // a mirror pass aborted
	KindReplyQueued   = "reply.queued"  // a reply entered the outbox
	KindReplySent     = "reply.sent"    // delivery confirmed
	KindReplyFailed   = "reply.failed"  // delivery failed
	KindStatusChanged = "daemon.status" // daemon state machine moved
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Now builds an event stamped with the current time.
func Now(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
