// Package notification defines in-app notifications produced by social workflows
// (follow, like, comment, post) and pushed to their receiver when online.
package notification

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindFollow  Kind = "follow"
	KindLike    Kind = "like"
	KindComment Kind = "comment"
	KindPost    Kind = "post"
)

var defaultMessages = map[Kind]string{
	KindFollow:  "started following you",
	KindLike:    "liked your post",
	KindComment: "commented on your post",
	KindPost:    "shared a new post",
}

func (k Kind) Valid() bool {
	_, ok := defaultMessages[k]
	return ok
}

// DefaultMessage is the text used when a producer does not provide one.
func (k Kind) DefaultMessage() string {
	return defaultMessages[k]
}

type Notification struct {
	ID         uuid.UUID
	ReceiverID string
	SenderID   string
	Kind       Kind
	Message    string
	IsRead     bool
	CreatedAt  time.Time
}

type NotifyCommand struct {
	SenderID   string `validate:"required,excludesall=:"`
	ReceiverID string `validate:"required,excludesall=:"`
	Kind       Kind   `validate:"required"`
	Message    string `validate:"max=280"`
	CreatedAt  time.Time
}
