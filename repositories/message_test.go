package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"social-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newConversation(t *testing.T, db *badger.DB, a, b string) DiskConversation {
	t.Helper()
	conversation, created, err := NewConversationRepository(db, slog.Default(), 3).GetOrCreate(a, b, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, created)
	return conversation
}

func Test_Append_Assigns_Consecutive_Sequences(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	conversation := newConversation(t, db, "alice", "bob")
	repository := NewMessageRepository(db, slog.Default(), nil, 3)
	at := time.Now().UTC()

	// Given three messages appended in order
	for i := 1; i <= 3; i++ {
		stored, err := repository.Append(DiskMessage{
			ID:             uuid.New(),
			ConversationID: conversation.ID,
			SenderID:       "alice",
			ReceiverID:     "bob",
			Text:           fmt.Sprintf("hello %d", i),
			At:             at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		req.Equal(uint64(i), stored.Seq)
	}

	// When fetching the history
	fetched, cursor, err := repository.GetMessages(conversation.ID, nil)
	req.NoError(err)

	// Then messages come newest first and the conversation sequence followed
	req.Nil(cursor)
	req.Equal([]string{"hello 3", "hello 2", "hello 1"}, lo.Map(fetched, func(m DiskMessage, _ int) string {
		return m.Text
	}))
	updated, err := NewConversationRepository(db, slog.Default(), 3).Get(conversation.ID)
	req.NoError(err)
	req.Equal(uint64(3), updated.MessageCount)
	req.NotNil(updated.LastMessageAt)
	req.True(updated.LastMessageAt.Equal(at.Add(3 * time.Second)))
}

func Test_Append_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repository := NewMessageRepository(db, slog.Default(), nil, 3)

	// When appending to a conversation that was never created
	_, err := repository.Append(DiskMessage{ID: uuid.New(), ConversationID: uuid.New(), Text: "lost"})

	// Then nothing is written
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_Concurrent_Appends_Never_Share_A_Sequence(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	conversation := newConversation(t, db, "alice", "bob")
	// Default CONVERSATION_RETRIES
	repository := NewMessageRepository(db, slog.Default(), nil, 5)

	// Given both members writing at the same time
	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repository.Append(DiskMessage{
				ID:             uuid.New(),
				ConversationID: conversation.ID,
				SenderID:       lo.Ternary(i%2 == 0, "alice", "bob"),
				ReceiverID:     lo.Ternary(i%2 == 0, "bob", "alice"),
				Text:           fmt.Sprintf("message %d", i),
				At:             time.Now().UTC(),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then every message got its own sequence, without gap
	fetched, _, err := repository.GetMessages(conversation.ID, nil)
	req.NoError(err)
	req.Len(fetched, writers)
	seqs := lo.Map(fetched, func(m DiskMessage, _ int) uint64 { return m.Seq })
	req.Equal([]uint64{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, seqs)

	// And the conversation counts all of them
	stored, err := NewConversationRepository(db, slog.Default(), 5).Get(conversation.ID)
	req.NoError(err)
	req.EqualValues(writers, stored.MessageCount)
}

func Test_MessageRepository_Pagination(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	conversation := newConversation(t, db, "alice", "bob")
	limit := 4
	repo := NewMessageRepository(db, slog.Default(), &limit, 3)
	now := time.Now().UTC()

	for i := 1; i <= 10; i++ {
		_, err := repo.Append(DiskMessage{
			ID:             uuid.New(),
			ConversationID: conversation.ID,
			SenderID:       "alice",
			ReceiverID:     "bob",
			Text:           fmt.Sprintf("Message %d", i),
			At:             now.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}

	// Page 1 holds the most recent messages
	msgs1, cursor1, err := repo.GetMessages(conversation.ID, nil)
	req.NoError(err)
	req.Len(msgs1, 4)
	req.Equal("Message 10", msgs1[0].Text)
	req.Equal("Message 7", msgs1[3].Text)
	req.NotNil(cursor1)

	// Page 2 starts right after the cursor, no duplicate
	msgs2, cursor2, err := repo.GetMessages(conversation.ID, cursor1)
	req.NoError(err)
	req.Len(msgs2, 4)
	req.Equal("Message 6", msgs2[0].Text)
	req.Equal("Message 3", msgs2[3].Text)
	req.NotNil(cursor2)

	// Page 3 is the end of the history
	msgs3, cursor3, err := repo.GetMessages(conversation.ID, cursor2)
	req.NoError(err)
	req.Len(msgs3, 2)
	req.Equal("Message 2", msgs3[0].Text)
	req.Equal("Message 1", msgs3[1].Text)
	req.Nil(cursor3)
}

func Test_GetMessages_Rejects_Malformed_Cursor(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil, 3)

	for _, cursor := range []string{"", "12", "abcdefghijklmnopqrs", "00000000000000000012:evil"} {
		_, _, err := repo.GetMessages(uuid.New(), lo.ToPtr(cursor))
		req.ErrorIs(err, errors.ErrInvalidCursor, cursor)
	}
}

func Test_GetMessages_Is_Scoped_To_The_Conversation(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	first := newConversation(t, db, "alice", "bob")
	second := newConversation(t, db, "alice", "clara")
	repo := NewMessageRepository(db, slog.Default(), nil, 3)

	_, err := repo.Append(DiskMessage{ID: uuid.New(), ConversationID: first.ID, SenderID: "alice", ReceiverID: "bob", Text: "to bob"})
	req.NoError(err)
	_, err = repo.Append(DiskMessage{ID: uuid.New(), ConversationID: second.ID, SenderID: "alice", ReceiverID: "clara", Text: "to clara"})
	req.NoError(err)

	fetched, _, err := repo.GetMessages(first.ID, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("to bob", fetched[0].Text)
}
