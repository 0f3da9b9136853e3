// Package event defines the domain events pushed to live connections.
// Event is a closed set: NewMessage and NewNotification are the only variants.
package event

import (
	"social-lab/domain/chat"
	"social-lab/domain/notification"
)

type Type string

const (
	NewMessageType      Type = "new_message"
	NewNotificationType Type = "new_notification"
)

// Event is implemented only inside this package.
// The recipient is never part of the event, it is a Dispatch argument.
type Event interface {
	Type() Type
	sealed()
}

type NewMessage struct {
	Message chat.Message
}

func (NewMessage) Type() Type { return NewMessageType }
func (NewMessage) sealed()    {}

type NewNotification struct {
	Notification notification.Notification
}

func (NewNotification) Type() Type { return NewNotificationType }
func (NewNotification) sealed()    {}
