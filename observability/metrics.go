package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_presence_connected_users",
			Help: "Number of users with a registered live connection",
		},
	)

	HandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_handshake_rejected_total",
			Help: "Connection attempts refused by the handshake gate",
		},
		[]string{"transport", "reason"},
	)

	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_dispatch_total",
			Help: "Fan-out dispatch calls by event type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: "delivered", "skipped", "failed"
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_chat_messages_sent_total",
			Help: "Chat messages persisted",
		},
	)

	ConversationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_conversation_write_retries_total",
			Help: "Conversation transactions retried after a write conflict",
		},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_notifications_created_total",
			Help: "Notifications persisted by kind",
		},
		[]string{"kind"},
	)

	WorkerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_worker_restarts_total",
			Help: "Supervised workers restarted after a crash",
		},
		[]string{"worker"},
	)
)
