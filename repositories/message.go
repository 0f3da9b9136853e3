//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apperrors "social-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const seqDigits = 19

type IMessageRepository interface {
	Append(message DiskMessage) (DiskMessage, error)
	GetMessages(conversationID uuid.UUID, cursor *string) ([]DiskMessage, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	maxRetries    int
	locks         *appendLocks
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int, maxRetries int) MessageRepository {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return MessageRepository{db: db, log: log, limitMessages: limitMessages, maxRetries: maxRetries, locks: &appendLocks{}}
}

type DiskMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	Seq            uint64    `json:"seq"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Text           string    `json:"text"`
	At             time.Time `json:"at"`
}

func messagePrefix(conversationID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

// messageKey is formatted as "msg:{conversation_id}:{seq_padded}".
// The 19-digit zero padding makes the lexicographical order the sequence order.
func messageKey(conversationID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%0*d", conversationID, seqDigits, seq))
}

// Append stores the message under the next sequence number of its conversation.
// The message and the conversation's new sequence are committed in the same transaction,
// so the history never has a gap nor a message without its conversation.
// Appends to one conversation are serialized in process; conflicts left are from
// other writers of the same database and are retried with backoff.
func (m MessageRepository) Append(message DiskMessage) (DiskMessage, error) {
	lock := m.locks.of(message.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		stored := message
		err := m.db.Update(func(txn *badger.Txn) error {
			conversation, err := loadConversation(txn, message.ConversationID)
			if err != nil {
				return err
			}

			conversation.MessageCount++
			at := message.At
			conversation.LastMessageAt = &at
			stored.Seq = conversation.MessageCount

			bytes, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(stored.ConversationID, stored.Seq), bytes); err != nil {
				return err
			}
			return saveConversation(txn, conversation)
		})
		if errors.Is(err, badger.ErrConflict) {
			m.log.Debug("Concurrent append on conversation, retrying",
				"conversation_id", message.ConversationID,
				"attempt", attempt)
			conflictPause(attempt)
			continue
		}
		if err != nil {
			return DiskMessage{}, err
		}
		return stored, nil
	}
	return DiskMessage{}, fmt.Errorf("%w: conversation %s after %d attempts",
		apperrors.ErrConversationConflict, message.ConversationID, m.maxRetries)
}

// GetMessages returns a page of the conversation history, newest first.
// The returned cursor is the sequence of the oldest message of the page and is nil
// once the history is exhausted. Passing it back returns the next older page.
func (m MessageRepository) GetMessages(conversationID uuid.UUID, cursor *string) ([]DiskMessage, *string, error) {
	if cursor != nil {
		if err := validateCursor(*cursor); err != nil {
			return nil, nil, err
		}
	}

	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past the newest possible sequence, then walk back in time
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				var message DiskMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				diskMessages = append(diskMessages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if m.limitMessages == nil || len(diskMessages) < *m.limitMessages {
		return diskMessages, nil, nil
	}
	return diskMessages, &lastKey, nil
}

func validateCursor(cursor string) error {
	if len(cursor) != seqDigits {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidCursor, cursor)
	}
	if _, err := strconv.ParseUint(cursor, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidCursor, cursor)
	}
	return nil
}
