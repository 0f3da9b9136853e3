package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once persisted.
// Seq is its position in the conversation sequence, starting at 1.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Seq            uint64
	SenderID       string
	ReceiverID     string
	Text           string
	CreatedAt      time.Time
}
