package chat

import (
	"time"
)

type SendMessageCommand struct {
	SenderID   string `validate:"required,excludesall=:"`
	ReceiverID string `validate:"required,excludesall=:"`
	Text       string `validate:"required"`
	CreatedAt  time.Time
}

type GetMessagesCommand struct {
	UserID string `validate:"required,excludesall=:"`
	PeerID string `validate:"required,excludesall=:"`
	Cursor *string
}
