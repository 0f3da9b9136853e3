package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"social-lab/auth"
	"social-lab/domain/chat"
	"social-lab/domain/event"
	"social-lab/domain/notification"
	"social-lab/errors"
	"social-lab/observability"
	"social-lab/services"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type Handlers struct {
	log                *slog.Logger
	chat               services.IChatService
	notifications      services.INotificationService
	presence           services.IPresenceService
	monitoring         *observability.MonitoringManager
	limitNotifications int
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type messagesResponse struct {
	Messages []event.MessageRecord `json:"messages"`
	Cursor   *string               `json:"cursor"`
}

type conversationResponse struct {
	ID            string     `json:"_id"`
	Participants  [2]string  `json:"participants"`
	Peer          string     `json:"peer"`
	MessageCount  uint64     `json:"messageCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

type notifyRequest struct {
	ReceiverID string `json:"receiverId"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type presenceResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.HTTPStatus(err) == http.StatusInternalServerError {
		h.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

// SendMessage is POST /api/messages/send/{receiverId}.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var body sendMessageRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	message, err := h.chat.SendMessage(r.Context(), chat.SendMessageCommand{
		SenderID:   userID,
		ReceiverID: chi.URLParam(r, "receiverId"),
		Text:       body.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event.ToMessageRecord(message))
}

// GetMessages is GET /api/messages/{peerId}?cursor=.
func (h *Handlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := h.chat.GetMessages(r.Context(), chat.GetMessagesCommand{
		UserID: userID,
		PeerID: chi.URLParam(r, "peerId"),
		Cursor: cursor,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) event.MessageRecord {
			return event.ToMessageRecord(m)
		}),
		Cursor: next,
	})
}

// ListConversations is GET /api/conversations.
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	conversations, err := h.chat.ListConversations(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(conversations, func(c chat.Conversation, _ int) conversationResponse {
		response := conversationResponse{
			ID:           c.ID.String(),
			Participants: c.Members,
			Peer:         c.Members.Peer(userID),
			MessageCount: c.MessageCount,
			CreatedAt:    c.CreatedAt,
		}
		if !c.LastMessageAt.IsZero() {
			response.LastMessageAt = lo.ToPtr(c.LastMessageAt)
		}
		return response
	}))
}

// CreateNotification is POST /api/notifications, called by the follow, like, comment and post workflows.
// The authenticated user is the sender.
func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var body notifyRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.notifications.Notify(r.Context(), notification.NotifyCommand{
		SenderID:   userID,
		ReceiverID: body.ReceiverID,
		Kind:       notification.Kind(body.Kind),
		Message:    body.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if n == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, event.ToNotificationRecord(*n))
}

// ListNotifications is GET /api/notifications?limit=.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	limit := h.limitNotifications
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.fail(w, r, errors.ErrInvalidCommand)
			return
		}
		limit = min(parsed, h.limitNotifications)
	}
	notifications, err := h.notifications.List(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(notifications, func(n notification.Notification, _ int) event.NotificationRecord {
		return event.ToNotificationRecord(n)
	}))
}

// MarkNotificationsRead is PATCH /api/notifications/read.
func (h *Handlers) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	updated, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// UnreadNotifications is GET /api/notifications/unread.
func (h *Handlers) UnreadNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	count, err := h.notifications.CountUnread(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// Presence is GET /api/presence/{userId}.
func (h *Handlers) Presence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	writeJSON(w, http.StatusOK, presenceResponse{UserID: userID, Online: h.presence.Online(userID)})
}

// Stats is GET /api/stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitoring.GetLatest())
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "connected_users": h.presence.Count()})
}
