package event

import (
	"fmt"
	"time"

	"social-lab/domain/chat"
	"social-lab/domain/notification"

	"github.com/goccy/go-json"
)

// Frame is the envelope written on every transport.
type Frame struct {
	Type Type            `json:"type"`
	Body json.RawMessage `json:"body"`
}

// MessageRecord is the client-facing shape of a persisted message.
type MessageRecord struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotificationRecord is the client-facing shape of a persisted notification.
type NotificationRecord struct {
	ID        string    `json:"_id"`
	Receiver  string    `json:"receiver"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToMessageRecord(m chat.Message) MessageRecord {
	return MessageRecord{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Text,
		CreatedAt:  m.CreatedAt,
	}
}

func ToNotificationRecord(n notification.Notification) NotificationRecord {
	return NotificationRecord{
		ID:        n.ID.String(),
		Receiver:  n.ReceiverID,
		Sender:    n.SenderID,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// Encode turns an event into its wire frame.
func Encode(e Event) (Frame, error) {
	var body any
	switch evt := e.(type) {
	case NewMessage:
		body = ToMessageRecord(evt.Message)
	case NewNotification:
		body = ToNotificationRecord(evt.Notification)
	default:
		return Frame{}, fmt.Errorf("unsupported event %T", e)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: e.Type(), Body: raw}, nil
}

// DecodeMessage reads the body of a new_message frame.
func (f Frame) DecodeMessage() (MessageRecord, error) {
	var record MessageRecord
	if f.Type != NewMessageType {
		return record, fmt.Errorf("frame type is %s, not %s", f.Type, NewMessageType)
	}
	err := json.Unmarshal(f.Body, &record)
	return record, err
}

// DecodeNotification reads the body of a new_notification frame.
func (f Frame) DecodeNotification() (NotificationRecord, error) {
	var record NotificationRecord
	if f.Type != NewNotificationType {
		return record, fmt.Errorf("frame type is %s, not %s", f.Type, NewNotificationType)
	}
	err := json.Unmarshal(f.Body, &record)
	return record, err
}
