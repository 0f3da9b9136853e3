package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"social-lab/domain/event"
	"social-lab/infrastructure/grpc/client"
	"social-lab/infrastructure/grpc/server"
	"social-lab/internal/apptest"
	"social-lab/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func startGRPC(t *testing.T) (*apptest.Harness, func(token string) *client.ChatClient) {
	h := apptest.Start(t)
	listener := bufconn.Listen(bufSize)
	go func() { _ = h.GRPCServer.Serve(listener) }()

	newClient := func(token string) *client.ChatClient {
		c, err := client.NewChatClient("passthrough:///bufnet", token,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}))
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	return h, newClient
}

func TestChatServer_Rejects_Unauthenticated_Calls(t *testing.T) {
	req := require.New(t)
	h, newClient := startGRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// When a client calls with a bad token
	c := newClient("garbage")
	_, err := c.Send(ctx, "bob", "hello")

	// Then the call is refused with the reason
	req.Equal(codes.Unauthenticated, status.Code(err))
	req.Equal("invalid_token", status.Convert(err).Message())

	// And its stream never reaches presence
	err = c.Subscribe(ctx, func(event.Frame) error { return nil })
	req.Equal(codes.Unauthenticated, status.Code(err))
	req.Zero(h.Presence.Count())
}

func TestChatServer_Only_Stream_Handshakes_Count_As_Rejections(t *testing.T) {
	req := require.New(t)
	_, newClient := startGRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rejections := observability.HandshakeRejections.WithLabelValues(server.Transport, "invalid_token")
	before := testutil.ToFloat64(rejections)
	c := newClient("garbage")

	// When unary calls fail authentication
	_, err := c.Send(ctx, "bob", "hello")
	req.Equal(codes.Unauthenticated, status.Code(err))
	_, _, err = c.History(ctx, "bob", nil)
	req.Equal(codes.Unauthenticated, status.Code(err))

	// Then no handshake rejection is recorded
	req.Equal(before, testutil.ToFloat64(rejections))

	// When the Connect stream fails its handshake
	err = c.Subscribe(ctx, func(event.Frame) error { return nil })
	req.Equal(codes.Unauthenticated, status.Code(err))

	// Then exactly one rejection is recorded
	req.Equal(before+1, testutil.ToFloat64(rejections))
}

func TestChatServer_Stream_Receives_Pushed_Message(t *testing.T) {
	req := require.New(t)
	h, newClient := startGRPC(t)
	alice, bob := newClient(h.Token(t, "alice")), newClient(h.Token(t, "bob"))

	// Given bob subscribed
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := make(chan event.Frame, 4)
	subscribed := make(chan error, 1)
	go func() {
		subscribed <- bob.Subscribe(ctx, func(frame event.Frame) error {
			frames <- frame
			return nil
		})
	}()
	h.WaitOnline(t, "bob")

	// When alice sends him a message
	sent, err := alice.Send(context.Background(), "bob", "  over grpc ")
	req.NoError(err)
	req.Equal("over grpc", sent.Message)

	// Then bob's stream carries it
	select {
	case frame := <-frames:
		record, err := frame.DecodeMessage()
		req.NoError(err)
		req.Equal(sent.ID, record.ID)
	case <-time.After(2 * time.Second):
		req.Fail("no frame pushed")
	}

	// When bob goes away, he is offline
	cancel()
	req.NoError(<-subscribed)
	h.WaitOffline(t, "bob")
}

func TestChatServer_History_Pages(t *testing.T) {
	req := require.New(t)
	h, newClient := startGRPC(t)
	alice := newClient(h.Token(t, "alice"))
	ctx := context.Background()

	// Given more messages than a page holds
	for i := range h.Config.LimitMessages + 2 {
		_, err := alice.Send(ctx, "bob", lo.RandomString(8, lo.LettersCharset)+string(rune('a'+i)))
		req.NoError(err)
	}

	// When paging through the history
	first, cursor, err := alice.History(ctx, "bob", nil)
	req.NoError(err)
	req.Len(first, h.Config.LimitMessages)
	req.NotNil(cursor)

	rest, next, err := alice.History(ctx, "bob", cursor)
	req.NoError(err)

	// Then every message is seen once and the last page has no cursor
	req.Len(rest, 2)
	req.Nil(next)
	ids := lo.Map(append(first, rest...), func(m event.MessageRecord, _ int) string { return m.ID })
	req.Len(lo.Uniq(ids), h.Config.LimitMessages+2)
}

func TestChatServer_Maps_Domain_Errors(t *testing.T) {
	req := require.New(t)
	h, newClient := startGRPC(t)
	alice := newClient(h.Token(t, "alice"))
	ctx := context.Background()

	_, err := alice.Send(ctx, "alice", "hi")
	req.Equal(codes.InvalidArgument, status.Code(err))

	_, err = alice.Send(ctx, "bob", "   ")
	req.Equal(codes.InvalidArgument, status.Code(err))

	_, _, err = alice.History(ctx, "bob", lo.ToPtr("nope"))
	req.NoError(err, "no conversation yet, the cursor is never read")
}
