// Package chat contains the two-party conversation model.
// A conversation is keyed by its unordered member pair and grows append-only.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Members is an unordered pair stored in canonical (sorted) order.
type Members [2]string

// NewMembers returns the canonical pair for a and b, whatever the argument order.
func NewMembers(a, b string) Members {
	if b < a {
		return Members{b, a}
	}
	return Members{a, b}
}

// PairKey identifies the pair independently of sender/receiver direction.
// The length prefix keeps ids containing the separator unambiguous.
func (m Members) PairKey() string {
	return fmt.Sprintf("%d:%s:%s", len(m[0]), m[0], m[1])
}

func (m Members) Contains(userID string) bool {
	return m[0] == userID || m[1] == userID
}

// Peer returns the member that is not userID.
func (m Members) Peer(userID string) string {
	if m[0] == userID {
		return m[1]
	}
	return m[0]
}

type Conversation struct {
	ID            uuid.UUID
	Members       Members
	MessageCount  uint64
	CreatedAt     time.Time
	LastMessageAt time.Time
}
