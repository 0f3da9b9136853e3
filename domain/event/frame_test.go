package event

import (
	"testing"
	"time"

	"social-lab/domain/chat"
	"social-lab/domain/notification"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncode_NewMessage(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := chat.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		Seq:            1,
		SenderID:       "alice",
		ReceiverID:     "bob",
		Text:           "hello",
		CreatedAt:      at,
	}

	frame, err := Encode(NewMessage{Message: msg})
	req.NoError(err)
	req.Equal(NewMessageType, frame.Type)

	// The body only carries the client-facing fields
	var raw map[string]any
	req.NoError(json.Unmarshal(frame.Body, &raw))
	req.Len(raw, 5)
	req.Equal(msg.ID.String(), raw["_id"])
	req.Equal("hello", raw["message"])

	record, err := frame.DecodeMessage()
	req.NoError(err)
	req.Equal(ToMessageRecord(msg), record)

	_, err = frame.DecodeNotification()
	req.Error(err)
}

func TestEncode_NewNotification(t *testing.T) {
	req := require.New(t)
	n := notification.Notification{
		ID:         uuid.New(),
		ReceiverID: "bob",
		SenderID:   "alice",
		Kind:       notification.KindFollow,
		Message:    "started following you",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	frame, err := Encode(NewNotification{Notification: n})
	req.NoError(err)
	req.Equal(NewNotificationType, frame.Type)

	record, err := frame.DecodeNotification()
	req.NoError(err)
	req.Equal("bob", record.Receiver)
	req.Equal("alice", record.Sender)
	req.False(record.IsRead)
	req.True(n.CreatedAt.Equal(record.CreatedAt))
}

func TestFrame_RoundTripsAsJSON(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(NewMessage{Message: chat.Message{ID: uuid.New(), Text: "hi"}})
	req.NoError(err)

	bytes, err := json.Marshal(frame)
	req.NoError(err)

	var decoded Frame
	req.NoError(json.Unmarshal(bytes, &decoded))
	req.Equal(frame.Type, decoded.Type)
	req.JSONEq(string(frame.Body), string(decoded.Body))
}
