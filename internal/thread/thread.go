// Package thread derives conversation identity from the weak grouping
// signals carried on individual message rows. chat.db has no first-class
// thread entity; group membership is smeared across a structured chat
// identifier, a cached room name, and a free-text group title that are
// inconsistently populated, so messages are coalesced by a tagged key.
package thread

// Kind tags which identity signal produced a Key.
type Kind string

const (
	// Structured means the message carried a registry-backed chat identifier.
	Structured Kind = "structured"
	// Cached means only the denormalized room-name cache was populated.
	Cached Kind = "cached"
	// Title means only the free-text group title was populated.
	Title Kind = "title"
	// Direct is a 1:1 conversation, keyed on the counterpart handle.
	Direct Kind = "direct"
)

// Key identifies a conversation. Two messages belong to the same thread
// iff their keys are equal, which makes Key usable as a map key.
type Key struct {
	Kind  Kind
	Value string
}

// Resolve computes the thread key for one message row.
//
// Precedence follows signal reliability: the structured identifier wins
// when present, then the cached room name, then the group title, and a
// row with no group signal at all is a direct conversation keyed on the
// handle. Divergent cached/title values for the same real conversation
// deliberately resolve to distinct keys; no semantic merging is attempted.
func Resolve(handleID, structuredID, cachedRoom, groupTitle string) Key {
	switch {
	case structuredID != "":
		return Key{Kind: Structured, Value: structuredID}
	case cachedRoom != "":
		return Key{Kind: Cached, Value: cachedRoom}
	case groupTitle != "":
		return Key{Kind: Title, Value: groupTitle}
	default:
		return Key{Kind: Direct, Value: handleID}
	}
}

// IsGroup reports whether the key came from any group signal.
func (k Key) IsGroup() bool {
	return k.Kind != Direct
}

// String renders the key for logs.
func (k Key) String() string {
	return string(k.Kind) + ":" + k.Value
}
