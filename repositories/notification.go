//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type INotificationRepository interface {
	Store(notification DiskNotification) error
	List(receiverID string, limit int) ([]DiskNotification, error)
	MarkAllRead(receiverID string) (int, error)
	CountUnread(receiverID string) (int, error)
}

type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

type DiskNotification struct {
	ID         uuid.UUID `json:"id"`
	ReceiverID string    `json:"receiverId"`
	SenderID   string    `json:"senderId"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"isRead"`
	At         time.Time `json:"at"`
}

func notificationPrefix(receiverID string) []byte {
	return []byte(fmt.Sprintf("notif:%s:", receiverID))
}

// notificationKey is formatted as "notif:{receiver}:{timestamp_padded}:{uuid}" so a
// receiver's notifications sort chronologically and never collide.
func notificationKey(n DiskNotification) []byte {
	return []byte(fmt.Sprintf("notif:%s:%019d:%s", n.ReceiverID, n.At.UnixNano(), n.ID))
}

func (r NotificationRepository) Store(notification DiskNotification) error {
	bytes, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notificationKey(notification), bytes)
	})
}

// List returns the receiver's latest notifications, newest first.
// A limit of zero or less returns all of them.
func (r NotificationRepository) List(receiverID string, limit int) ([]DiskNotification, error) {
	var notifications []DiskNotification
	err := r.scan(receiverID, func(_ []byte, n DiskNotification) bool {
		notifications = append(notifications, n)
		return limit <= 0 || len(notifications) < limit
	})
	return notifications, err
}

// MarkAllRead flags every unread notification of the receiver as read and returns how many changed.
func (r NotificationRepository) MarkAllRead(receiverID string) (int, error) {
	type pending struct {
		key   []byte
		value []byte
	}
	var updates []pending
	err := r.scan(receiverID, func(key []byte, n DiskNotification) bool {
		if n.IsRead {
			return true
		}
		n.IsRead = true
		bytes, err := json.Marshal(n)
		if err != nil {
			r.log.Warn("Notification could not be encoded", "id", n.ID, "error", err)
			return true
		}
		updates = append(updates, pending{key: key, value: bytes})
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, u := range updates {
		if err := wb.Set(u.key, u.value); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(updates), nil
}

func (r NotificationRepository) CountUnread(receiverID string) (int, error) {
	count := 0
	err := r.scan(receiverID, func(_ []byte, n DiskNotification) bool {
		if !n.IsRead {
			count++
		}
		return true
	})
	return count, err
}

// scan walks the receiver's notifications newest first until visit returns false.
func (r NotificationRepository) scan(receiverID string, visit func(key []byte, n DiskNotification) bool) error {
	return r.db.View(func(txn *badger.Txn) error {
		prefix := notificationPrefix(receiverID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(prefix, 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var n DiskNotification
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &n)
			}); err != nil {
				return err
			}
			if !visit(item.KeyCopy(nil), n) {
				return nil
			}
		}
		return nil
	})
}
