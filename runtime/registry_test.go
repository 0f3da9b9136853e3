package runtime

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"social-lab/contract"
	"social-lab/domain/event"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	name string
}

func (s *fakeSink) Consume(ctx context.Context, e event.Event) error {
	return nil
}

func TestRegistry_Put_Then_Get(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := &fakeSink{name: "alice-ws"}

	// Given nobody is connected
	req.Zero(registry.Len())
	req.False(registry.Online("alice"))

	// When alice connects
	_, replaced := registry.Put("alice", "ws-1", sink)

	// Then her connection is reachable
	req.False(replaced)
	entry, ok := registry.Get("alice")
	req.True(ok)
	req.Equal(contract.ConnectionID("ws-1"), entry.ConnectionID)
	req.Same(sink, entry.Sink)
	req.False(entry.Since.IsZero())
	req.True(registry.Online("alice"))
	req.Equal(1, registry.Len())
}

func TestRegistry_Last_Connection_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := &fakeSink{name: "first"}
	second := &fakeSink{name: "second"}

	// Given alice connected once
	registry.Put("alice", "ws-1", first)

	// When she connects again from another tab
	superseded, replaced := registry.Put("alice", "grpc-2", second)

	// Then only the newest connection is registered
	req.True(replaced)
	req.Equal(contract.ConnectionID("ws-1"), superseded)
	entry, ok := registry.Get("alice")
	req.True(ok)
	req.Same(second, entry.Sink)
	req.Equal(1, registry.Len())
}

func TestRegistry_Stale_Close_Keeps_Newer_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	newer := &fakeSink{name: "newer"}

	// Given alice reconnected before her first connection closed
	registry.Put("alice", "C1", &fakeSink{name: "older"})
	registry.Put("alice", "C2", newer)

	// When the close of C1 finally arrives
	_, removed := registry.Remove("C1")

	// Then C2 still receives alice's events
	req.False(removed)
	entry, ok := registry.Get("alice")
	req.True(ok)
	req.Equal(contract.ConnectionID("C2"), entry.ConnectionID)
	req.Same(newer, entry.Sink)
}

func TestRegistry_Remove_Current_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Put("alice", "C1", &fakeSink{})
	registry.Put("bob", "C2", &fakeSink{})

	// When alice's current connection closes
	userID, removed := registry.Remove("C1")

	// Then she is offline and bob is untouched
	req.True(removed)
	req.Equal("alice", userID)
	req.False(registry.Online("alice"))
	req.True(registry.Online("bob"))

	// And a second close of the same connection changes nothing
	_, removed = registry.Remove("C1")
	req.False(removed)
	req.Equal(1, registry.Len())
}

func TestRegistry_Reused_Connection_ID_Moves_Owner(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Put("alice", "C1", &fakeSink{})

	// When a connection id shows up for another user
	registry.Put("bob", "C1", &fakeSink{})

	// Then it is no longer alice's
	req.False(registry.Online("alice"))
	req.True(registry.Online("bob"))
	userID, removed := registry.Remove("C1")
	req.True(removed)
	req.Equal("bob", userID)
	req.Zero(registry.Len())
}

func TestRegistry_Reset(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Put("alice", "C1", &fakeSink{})
	registry.Put("bob", "C2", &fakeSink{})

	registry.Reset()

	req.Zero(registry.Len())
	_, removed := registry.Remove("C1")
	req.False(removed)
}

// The registry must always hold exactly the latest still-open connection of each user,
// whatever the interleaving of connects and closes.
func TestRegistry_Random_Lifecycle_Matches_Model(t *testing.T) {
	req := require.New(t)
	rnd := rand.New(rand.NewSource(42))
	registry := NewRegistry()

	users := []string{"alice", "bob", "clara"}
	latest := map[string]contract.ConnectionID{} // model: user -> newest connection
	closed := map[contract.ConnectionID]bool{}
	var opened []contract.ConnectionID
	owner := map[contract.ConnectionID]string{}

	for step := 0; step < 2000; step++ {
		if rnd.Intn(2) == 0 || len(opened) == 0 {
			user := users[rnd.Intn(len(users))]
			connectionID := contract.ConnectionID(fmt.Sprintf("conn-%d", step))
			registry.Put(user, connectionID, &fakeSink{})
			latest[user] = connectionID
			owner[connectionID] = user
			opened = append(opened, connectionID)
			continue
		}

		connectionID := opened[rnd.Intn(len(opened))]
		registry.Remove(connectionID)
		closed[connectionID] = true
		if user := owner[connectionID]; latest[user] == connectionID {
			delete(latest, user)
		}

		for _, user := range users {
			entry, ok := registry.Get(user)
			expected, online := latest[user]
			req.Equal(online, ok, "step %d user %s", step, user)
			if online {
				req.Equal(expected, entry.ConnectionID, "step %d user %s", step, user)
				req.False(closed[entry.ConnectionID])
			}
		}
	}
	req.Equal(len(latest), registry.Len())
}
