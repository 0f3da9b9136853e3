//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"social-lab/domain/chat"
	apperrors "social-lab/errors"
	"social-lab/observability"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type IConversationRepository interface {
	GetOrCreate(a, b string, at time.Time) (DiskConversation, bool, error)
	Get(conversationID uuid.UUID) (DiskConversation, error)
	Find(a, b string) (DiskConversation, error)
	ListForUser(userID string) ([]DiskConversation, error)
}

type ConversationRepository struct {
	db         *badger.DB
	log        *slog.Logger
	maxRetries int
}

func NewConversationRepository(db *badger.DB, log *slog.Logger, maxRetries int) ConversationRepository {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return ConversationRepository{db: db, log: log, maxRetries: maxRetries}
}

// DiskConversation is the persisted 1:1 conversation.
// MessageCount is the sequence of the last appended message.
type DiskConversation struct {
	ID            uuid.UUID  `json:"id"`
	Members       [2]string  `json:"members"`
	MessageCount  uint64     `json:"messageCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

func pairKey(members chat.Members) []byte {
	return []byte("conv:pair:" + members.PairKey())
}

func conversationKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("conv:id:%s", id))
}

func memberIndexPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("conv:user:%s:", userID))
}

func memberIndexKey(userID string, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("conv:user:%s:%s", userID, id))
}

// GetOrCreate returns the conversation between a and b, creating it on first use.
// The pair key is read inside the write transaction: two concurrent creations
// read the same missing key, badger rejects the second commit with ErrConflict,
// and the retry then finds the conversation created by the first one.
func (r ConversationRepository) GetOrCreate(a, b string, at time.Time) (DiskConversation, bool, error) {
	members := chat.NewMembers(a, b)

	existing, err := r.Find(a, b)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, apperrors.ErrConversationNotFound):
		return DiskConversation{}, false, err
	}

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		var conversation DiskConversation
		created := false
		err = r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(pairKey(members))
			switch {
			case err == nil:
				id, err := readConversationID(item)
				if err != nil {
					return err
				}
				conversation, err = loadConversation(txn, id)
				return err
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}

			conversation = DiskConversation{
				ID:        uuid.New(),
				Members:   members,
				CreatedAt: at,
			}
			if err := saveConversation(txn, conversation); err != nil {
				return err
			}
			if err := txn.Set(pairKey(members), []byte(conversation.ID.String())); err != nil {
				return err
			}
			for _, member := range members {
				if err := txn.Set(memberIndexKey(member, conversation.ID), nil); err != nil {
					return err
				}
			}
			created = true
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			observability.ConversationRetries.Inc()
			r.log.Debug("Conversation creation raced, retrying", "pair", members.PairKey(), "attempt", attempt)
			conflictPause(attempt)
			continue
		}
		if err != nil {
			return DiskConversation{}, false, err
		}
		return conversation, created, nil
	}
	return DiskConversation{}, false, fmt.Errorf("%w: pair %s after %d attempts",
		apperrors.ErrConversationConflict, members.PairKey(), r.maxRetries)
}

// Find returns the conversation between a and b or ErrConversationNotFound.
func (r ConversationRepository) Find(a, b string) (DiskConversation, error) {
	members := chat.NewMembers(a, b)
	var conversation DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(members))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		id, err := readConversationID(item)
		if err != nil {
			return err
		}
		conversation, err = loadConversation(txn, id)
		return err
	})
	return conversation, err
}

func (r ConversationRepository) Get(conversationID uuid.UUID) (DiskConversation, error) {
	var conversation DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conversation, err = loadConversation(txn, conversationID)
		return err
	})
	return conversation, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r ConversationRepository) ListForUser(userID string) ([]DiskConversation, error) {
	var conversations []DiskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberIndexPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := uuid.ParseBytes(it.Item().Key()[len(prefix):])
			if err != nil {
				return fmt.Errorf("corrupted member index key %q: %w", it.Item().Key(), err)
			}
			conversation, err := loadConversation(txn, id)
			if err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(conversations, func(x, y DiskConversation) int {
		return lastActivity(y).Compare(lastActivity(x))
	})
	return conversations, nil
}

func lastActivity(c DiskConversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func readConversationID(item *badger.Item) (uuid.UUID, error) {
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.ParseBytes(raw)
}

func loadConversation(txn *badger.Txn, id uuid.UUID) (DiskConversation, error) {
	item, err := txn.Get(conversationKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DiskConversation{}, apperrors.ErrConversationNotFound
	}
	if err != nil {
		return DiskConversation{}, err
	}
	var conversation DiskConversation
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &conversation)
	})
	return conversation, err
}

func saveConversation(txn *badger.Txn, conversation DiskConversation) error {
	bytes, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return txn.Set(conversationKey(conversation.ID), bytes)
}
