package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"social-lab/contract"
	"social-lab/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func startRouter(t *testing.T) (*PresenceRouter, *Registry, context.CancelFunc) {
	t.Helper()
	registry := NewRegistry()
	router := NewPresenceRouter(logs.GetLoggerFromLevel(slog.LevelError), registry, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = router.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return router, registry, cancel
}

func TestPresenceRouter_Connected_Is_Applied_Before_Returning(t *testing.T) {
	req := require.New(t)
	router, registry, _ := startRouter(t)
	ctx := context.Background()

	// When alice's handshake succeeds
	req.NoError(router.Connected(ctx, "alice", "ws-1", &fakeSink{}))

	// Then she is online as soon as the call returns
	req.True(registry.Online("alice"))
}

func TestPresenceRouter_Reconnect_Before_Close(t *testing.T) {
	req := require.New(t)
	router, registry, _ := startRouter(t)
	ctx := context.Background()
	c2 := &fakeSink{name: "C2"}

	// Given connected(alice, C1) then connected(alice, C2)
	req.NoError(router.Connected(ctx, "alice", "C1", &fakeSink{name: "C1"}))
	req.NoError(router.Connected(ctx, "alice", "C2", c2))

	// When closed(C1) is processed
	req.NoError(router.Closed(ctx, "C1"))

	// Then events for alice still go to C2
	entry, ok := registry.Get("alice")
	req.True(ok)
	req.Equal(contract.ConnectionID("C2"), entry.ConnectionID)
	req.Same(c2, entry.Sink)

	// And closing C2 takes her offline
	req.NoError(router.Closed(ctx, "C2"))
	req.False(registry.Online("alice"))
}

func TestPresenceRouter_Concurrent_Transports(t *testing.T) {
	req := require.New(t)
	router, registry, _ := startRouter(t)
	ctx := context.Background()

	// Given many users connecting and disconnecting from many goroutines
	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			first := contract.ConnectionID(fmt.Sprintf("ws-%d", i))
			second := contract.ConnectionID(fmt.Sprintf("grpc-%d", i))
			req.NoError(router.Connected(ctx, userID, first, &fakeSink{}))
			req.NoError(router.Connected(ctx, userID, second, &fakeSink{}))
			req.NoError(router.Closed(ctx, first))
		}(i)
	}
	wg.Wait()

	// Then every user ends with only its second connection
	req.Equal(users, registry.Len())
	for i := 0; i < users; i++ {
		entry, ok := registry.Get(fmt.Sprintf("user-%d", i))
		req.True(ok)
		req.Equal(contract.ConnectionID(fmt.Sprintf("grpc-%d", i)), entry.ConnectionID)
	}
}

func TestPresenceRouter_Stopped_Rejects_Events(t *testing.T) {
	req := require.New(t)
	router, registry, cancel := startRouter(t)

	// Given the router was shut down
	cancel()
	<-router.stopped

	// When a transport reports a connection
	err := router.Connected(context.Background(), "alice", "ws-1", &fakeSink{})

	// Then it is told and nothing is registered
	req.ErrorIs(err, errors.ErrRouterStopped)
	req.ErrorIs(router.Closed(context.Background(), "ws-1"), errors.ErrRouterStopped)
	req.False(registry.Online("alice"))
}

func TestPresenceRouter_Caller_Context_Canceled(t *testing.T) {
	req := require.New(t)

	// Given a router whose loop is not running
	router := NewPresenceRouter(logs.GetLoggerFromLevel(slog.LevelError), NewRegistry(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// When a transport reports a connection
	err := router.Connected(ctx, "alice", "ws-1", &fakeSink{})

	// Then it gives up with its own context
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestPresenceRouter_Caller_Gave_Up_After_Enqueue_Leaves_No_Entry(t *testing.T) {
	req := require.New(t)

	// Given a router with room in its queue but a loop not running yet
	registry := NewRegistry()
	router := NewPresenceRouter(logs.GetLoggerFromLevel(slog.LevelError), registry, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// When the transport gives up waiting for its registration
	err := router.Connected(ctx, "alice", "ws-1", &fakeSink{})
	req.ErrorIs(err, context.DeadlineExceeded)

	// And the loop starts afterwards
	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = router.Run(runCtx)
		close(done)
	}()
	defer func() {
		stop()
		<-done
	}()

	// Then alice is not left online against the abandoned connection
	req.NoError(router.Connected(context.Background(), "bob", "ws-2", &fakeSink{}))
	req.Eventually(func() bool { return !registry.Online("alice") }, time.Second, 5*time.Millisecond)
	req.True(registry.Online("bob"))
	req.Equal(1, registry.Len())
}

func TestPresenceRouter_Caller_Gave_Up_Does_Not_Remove_A_Newer_Connection(t *testing.T) {
	req := require.New(t)

	// Given a queued registration abandoned by its caller
	registry := NewRegistry()
	router := NewPresenceRouter(logs.GetLoggerFromLevel(slog.LevelError), registry, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req.ErrorIs(router.Connected(ctx, "alice", "ws-1", &fakeSink{}), context.DeadlineExceeded)

	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = router.Run(runCtx)
		close(done)
	}()
	defer func() {
		stop()
		<-done
	}()

	// When alice reconnects on a new connection
	req.NoError(router.Connected(context.Background(), "alice", "ws-2", &fakeSink{}))

	// Then the new connection is the one that stays
	req.Never(func() bool {
		entry, ok := registry.Get("alice")
		return !ok || entry.ConnectionID != "ws-2"
	}, 100*time.Millisecond, 5*time.Millisecond)
}
