package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"social-lab/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_GetOrCreate_Is_Order_Independent(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repository := NewConversationRepository(db, slog.Default(), 3)
	at := time.Now().UTC()

	// Given alice writing to bob first
	first, created, err := repository.GetOrCreate("alice", "bob", at)
	req.NoError(err)
	req.True(created)

	// When bob answers
	second, created, err := repository.GetOrCreate("bob", "alice", at.Add(time.Minute))
	req.NoError(err)

	// Then both resolve the same conversation
	req.False(created)
	req.Equal(first.ID, second.ID)
	req.Equal([2]string{"alice", "bob"}, second.Members)
}

func Test_GetOrCreate_Concurrent_Creates_Exactly_One(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repository := NewConversationRepository(db, slog.Default(), 10)

	// Given many first messages between the same pair racing each other
	const racers = 10
	var wg sync.WaitGroup
	ids := make(chan uuid.UUID, racers)
	created := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			conversation, isNew, err := repository.GetOrCreate(a, b, time.Now().UTC())
			req.NoError(err)
			ids <- conversation.ID
			created <- isNew
		}(i)
	}
	wg.Wait()
	close(ids)
	close(created)

	// Then every caller got the same conversation and only one created it
	distinct := lo.Uniq(lo.ChannelToSlice(ids))
	req.Len(distinct, 1)
	req.Equal(1, lo.CountBy(lo.ChannelToSlice(created), func(b bool) bool { return b }))

	conversations, err := repository.ListForUser("alice")
	req.NoError(err)
	req.Len(conversations, 1)
}

func Test_Find_Unknown_Pair(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repository := NewConversationRepository(db, slog.Default(), 3)

	_, err := repository.Find("alice", "nobody")
	req.ErrorIs(err, errors.ErrConversationNotFound)

	_, err = repository.Get(uuid.New())
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_ListForUser_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	conversations := NewConversationRepository(db, slog.Default(), 3)
	messages := NewMessageRepository(db, slog.Default(), nil, 3)
	at := time.Now().UTC()

	// Given alice talking with bob, then clara, then bob again
	withBob, _, err := conversations.GetOrCreate("alice", "bob", at)
	req.NoError(err)
	withClara, _, err := conversations.GetOrCreate("clara", "alice", at.Add(time.Second))
	req.NoError(err)
	_, _, err = conversations.GetOrCreate("bob", "clara", at.Add(2*time.Second))
	req.NoError(err)

	_, err = messages.Append(DiskMessage{ID: uuid.New(), ConversationID: withClara.ID, SenderID: "clara", ReceiverID: "alice", Text: "hi", At: at.Add(time.Minute)})
	req.NoError(err)
	_, err = messages.Append(DiskMessage{ID: uuid.New(), ConversationID: withBob.ID, SenderID: "alice", ReceiverID: "bob", Text: "hey", At: at.Add(2 * time.Minute)})
	req.NoError(err)

	// When listing alice's conversations
	listed, err := conversations.ListForUser("alice")
	req.NoError(err)

	// Then only hers are returned, latest activity first
	req.Equal([]uuid.UUID{withBob.ID, withClara.ID}, lo.Map(listed, func(c DiskConversation, _ int) uuid.UUID {
		return c.ID
	}))
}
