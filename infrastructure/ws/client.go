package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"social-lab/domain/event"
	"social-lab/services"
	"social-lab/sink"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	// Application level keep-alive for clients that cannot see protocol pings
	PingType event.Type = "ping"
	PongType event.Type = "pong"
)

// client pumps one admitted connection.
// writePump is the only writer of conn, readPump the only reader.
type client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	sink     *sink.ConnectionSink
	session  *services.Session
	control  chan event.Frame
	closed   chan struct{}
	shutdown sync.Once
}

func newClient(log *slog.Logger, conn *websocket.Conn, connection *sink.ConnectionSink, session *services.Session) *client {
	return &client{
		log:     log.With("user_id", session.UserID, "connection_id", session.ConnectionID),
		conn:    conn,
		sink:    connection,
		session: session,
		control: make(chan event.Frame, 1),
		closed:  make(chan struct{}),
	}
}

// close detaches this connection from presence, once, whichever pump ends first.
func (c *client) close() {
	c.shutdown.Do(func() {
		_ = c.session.Detach(context.Background())
		c.sink.Close()
		close(c.closed)
		_ = c.conn.Close()
		c.log.Debug("Websocket closed")
	})
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected websocket close error", "error", err)
			}
			return
		}

		var frame event.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Debug("Ignoring malformed client frame", "error", err)
			continue
		}
		if frame.Type == PingType {
			select {
			case c.control <- event.Frame{Type: PongType}:
			default:
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-c.sink.Events():
			frame, err := event.Encode(evt)
			if err != nil {
				c.log.Error("Event could not be encoded", "type", evt.Type(), "error", err)
				continue
			}
			if err := c.writeFrame(frame); err != nil {
				c.log.Warn("failed to write event", "type", frame.Type, "error", err)
				return
			}
		case frame := <-c.control:
			if err := c.writeFrame(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeFrame(frame event.Frame) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
