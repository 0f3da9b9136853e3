// Package rest is the HTTP surface of the service: the chat and notification workflows,
// the presence lookup and the websocket handshake.
package rest

import (
	"log/slog"
	"net/http"
	"time"

	"social-lab/auth"
	"social-lab/observability"
	"social-lab/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Log                *slog.Logger
	Chat               services.IChatService
	Notifications      services.INotificationService
	Presence           services.IPresenceService
	Tokens             *auth.TokenManager
	Monitoring         *observability.MonitoringManager
	Gateway            http.Handler
	AllowedOrigins     []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	LimitNotifications int
}

func NewRouter(deps Dependencies) http.Handler {
	h := &Handlers{
		log:                deps.Log,
		chat:               deps.Chat,
		notifications:      deps.Notifications,
		presence:           deps.Presence,
		monitoring:         deps.Monitoring,
		limitNotifications: deps.LimitNotifications,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(deps.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())
	if deps.Gateway != nil {
		r.Handle("/ws", deps.Gateway)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(deps.RateLimitRequests, deps.RateLimitWindow))
		}
		r.Use(Identity(deps.Tokens))

		r.Get("/stats", h.Stats)
		r.Get("/presence/{userId}", h.Presence)
		r.Get("/conversations", h.ListConversations)

		r.Route("/messages", func(r chi.Router) {
			r.Post("/send/{receiverId}", h.SendMessage)
			r.Get("/{peerId}", h.GetMessages)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/", h.CreateNotification)
			r.Patch("/read", h.MarkNotificationsRead)
			r.Get("/unread", h.UnreadNotifications)
		})
	})

	return r
}
