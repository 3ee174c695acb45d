package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name                             string
		handle, structured, cached, title string
		want                             Key
	}{
		{"structured wins over everything", "alice", "chat123", "room-a", "Ski Trip", Key{Structured, "chat123"}},
		{"cached wins over title", "alice", "", "room-a", "Ski Trip", Key{Cached, "room-a"}},
		{"title when nothing better", "alice", "", "", "Ski Trip", Key{Title, "Ski Trip"}},
		{"direct when no group signal", "alice", "", "", "", Key{Direct, "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.handle, tt.structured, tt.cached, tt.title))
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	a := Resolve("bob", "c1", "", "")
	b := Resolve("bob", "c1", "", "")
	assert.Equal(t, a, b, "identical inputs must yield an identical key")
}

func TestDivergentCacheValuesAreDistinctThreads(t *testing.T) {
	// The denormalized fields can disagree for the same real conversation;
	// the resolver does not try to reconcile them.
	a := Resolve("alice", "", "room-a", "")
	b := Resolve("alice", "", "room-b", "")
	assert.NotEqual(t, a, b)
}

func TestIsGroup(t *testing.T) {
	assert.False(t, Resolve("alice", "", "", "").IsGroup())
	assert.True(t, Resolve("alice", "c1", "", "").IsGroup())
	assert.True(t, Resolve("alice", "", "", "Trip").IsGroup())
}
