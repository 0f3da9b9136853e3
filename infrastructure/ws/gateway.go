// Package ws is the browser transport: one websocket per admitted user, server push only.
package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"social-lab/auth"
	"social-lab/services"
	"social-lab/sink"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const Transport = "ws"

// Gateway upgrades GET /ws once the handshake gate admitted the request.
// A rejected handshake never upgrades: the client gets 401 and a JSON reason.
type Gateway struct {
	log            *slog.Logger
	gate           *auth.Gate
	presence       services.IPresenceService
	allowedOrigins []string
	bufferSize     int
	upgrader       websocket.Upgrader
}

func NewGateway(log *slog.Logger, gate *auth.Gate, presence services.IPresenceService,
	allowedOrigins []string, bufferSize int) *Gateway {
	g := &Gateway{
		log:            log,
		gate:           gate,
		presence:       presence,
		allowedOrigins: allowedOrigins,
		bufferSize:     bufferSize,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return g.originAllowed(r.Header.Get("Origin"))
		},
	}
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.originAllowed(r.Header.Get("Origin")) {
		g.log.Warn("Websocket origin rejected", "origin", r.Header.Get("Origin"))
		writeReason(w, http.StatusForbidden, "origin_not_allowed")
		return
	}

	identity, err := g.gate.Admit(r.Context(), Transport, tokenFromRequest(r))
	if err != nil {
		writeReason(w, http.StatusUnauthorized, auth.RejectionReason(err))
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied to the client
		g.log.Debug("Websocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	connection := sink.NewConnectionSink(g.bufferSize)
	session, err := g.presence.Attach(r.Context(), identity, Transport, connection)
	if err != nil {
		g.log.Error("Websocket session could not be attached", "user_id", identity.UserID, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "presence unavailable"))
		_ = conn.Close()
		connection.Close()
		return
	}

	c := newClient(g.log, conn, connection, session)
	go c.writePump()
	go c.readPump()
}

// originAllowed accepts requests without Origin (native clients) and the configured origins.
func (g *Gateway) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range g.allowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// tokenFromRequest reads the token from the handshake: the "token" query parameter
// (browsers cannot set headers on a websocket), the Authorization header, then the "jwt" cookie.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return header
	}
	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}

func writeReason(w http.ResponseWriter, statusCode int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
