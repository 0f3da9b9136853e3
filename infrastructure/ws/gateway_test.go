package ws_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"social-lab/domain/chat"
	"social-lab/domain/event"
	"social-lab/infrastructure/ws"
	"social-lab/internal/apptest"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*apptest.Harness, string) {
	h := apptest.Start(t)
	server := httptest.NewServer(h.HTTPHandler)
	t.Cleanup(server.Close)
	return h, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) event.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame event.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestGateway_Rejects_Handshake_Before_Upgrade(t *testing.T) {
	h, url := startServer(t)

	testCases := []struct {
		name     string
		url      string
		header   http.Header
		status   int
		expected string
	}{
		{"missing token", url, nil, http.StatusUnauthorized, "missing_token"},
		{"invalid token", url + "?token=garbage", nil, http.StatusUnauthorized, "invalid_token"},
		{"foreign origin", url + "?token=" + h.Token(t, "alice"),
			http.Header{"Origin": []string{"http://evil.example"}}, http.StatusForbidden, "origin_not_allowed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)

			_, resp, err := websocket.DefaultDialer.Dial(tc.url, tc.header)

			req.ErrorIs(err, websocket.ErrBadHandshake)
			defer func() { _ = resp.Body.Close() }()
			req.Equal(tc.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			req.NoError(err)
			req.JSONEq(`{"error":"`+tc.expected+`"}`, string(body))
		})
	}
	require.False(t, h.Presence.Online("alice"))
}

func TestGateway_Pushes_New_Message_To_Online_Receiver(t *testing.T) {
	req := require.New(t)
	h, url := startServer(t)

	// Given bob connected from the allowed origin
	dialHeader := http.Header{"Origin": []string{"http://localhost:5173"}}
	conn := dial(t, url+"?token="+h.Token(t, "bob"), dialHeader)
	h.WaitOnline(t, "bob")

	// When alice sends him a message
	sent, err := h.Chat.SendMessage(context.Background(), chat.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "hello bob",
	})
	req.NoError(err)

	// Then bob receives it as a new_message frame
	frame := readFrame(t, conn)
	req.Equal(event.NewMessageType, frame.Type)
	record, err := frame.DecodeMessage()
	req.NoError(err)
	req.Equal(sent.ID.String(), record.ID)
	req.Equal("hello bob", record.Message)
	req.Equal("alice", record.SenderID)
}

func TestGateway_Authorization_Header_And_Application_Ping(t *testing.T) {
	req := require.New(t)
	h, url := startServer(t)

	conn := dial(t, url, http.Header{"Authorization": []string{"Bearer " + h.Token(t, "carol")}})
	h.WaitOnline(t, "carol")

	req.NoError(conn.WriteJSON(event.Frame{Type: ws.PingType}))

	req.Equal(ws.PongType, readFrame(t, conn).Type)
}

func TestGateway_Close_Detaches_Only_Current_Connection(t *testing.T) {
	req := require.New(t)
	h, url := startServer(t)
	token := h.Token(t, "alice")

	// Given alice connected twice, the second connection wins
	first := dial(t, url+"?token="+token, nil)
	h.WaitOnline(t, "alice")
	second := dial(t, url+"?token="+token, nil)
	// The pumps only start once the connection is attached
	req.NoError(second.WriteJSON(event.Frame{Type: ws.PingType}))
	req.Equal(ws.PongType, readFrame(t, second).Type)

	_, err := h.Chat.SendMessage(context.Background(), chat.SendMessageCommand{
		SenderID: "bob", ReceiverID: "alice", Text: "hi alice",
	})
	req.NoError(err)
	req.Equal(event.NewMessageType, readFrame(t, second).Type)

	// When the superseded connection closes late
	req.NoError(first.Close())
	time.Sleep(50 * time.Millisecond)

	// Then alice is still online on the second one
	req.True(h.Presence.Online("alice"))

	// When the current connection closes
	req.NoError(second.Close())

	// Then alice goes offline
	h.WaitOffline(t, "alice")
}
