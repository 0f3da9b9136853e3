// Package app wires the storage, the real-time core, the services and the transports
// of the social backend together.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"social-lab/auth"
	"social-lab/infrastructure/grpc/server"
	"social-lab/infrastructure/rest"
	"social-lab/infrastructure/ws"
	"social-lab/internal"
	"social-lab/observability"
	"social-lab/repositories"
	"social-lab/runtime"
	"social-lab/runtime/workers"
	"social-lab/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"google.golang.org/grpc"
)

type App struct {
	log           *slog.Logger
	orchestrator  *runtime.Orchestrator
	Tokens        *auth.TokenManager
	Chat          services.IChatService
	Notifications services.INotificationService
	Presence      services.IPresenceService
	HTTPHandler   http.Handler
	GRPCServer    *grpc.Server
}

func New(log *slog.Logger, db *badger.DB, config internal.Config) *App {
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, supervisor,
		config.LifecycleBufferSize, config.DeliveryTimeout, config.MonitoringInterval)

	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenIssuer)
	gate := auth.NewGate(log, tokens)

	conversationRepository := repositories.NewConversationRepository(db, log, config.ConversationRetries)
	messageRepository := repositories.NewMessageRepository(db, log, lo.ToPtr(config.LimitMessages), config.ConversationRetries)
	notificationRepository := repositories.NewNotificationRepository(db, log)

	chatService := services.NewChatService(log, conversationRepository, messageRepository,
		orchestrator.Dispatcher(), config.MaxMessageLength)
	notificationService := services.NewNotificationService(log, notificationRepository, orchestrator.Dispatcher())
	presenceService := services.NewPresenceService(log, orchestrator.Router(), orchestrator.Presence())

	gateway := ws.NewGateway(log, gate, presenceService, config.AllowedOrigins(), config.ConnectionBufferSize)
	handler := rest.NewRouter(rest.Dependencies{
		Log:                log,
		Chat:               chatService,
		Notifications:      notificationService,
		Presence:           presenceService,
		Tokens:             tokens,
		Monitoring:         orchestrator.Monitoring(),
		Gateway:            gateway,
		AllowedOrigins:     config.AllowedOrigins(),
		RateLimitRequests:  config.RateLimitRequests,
		RateLimitWindow:    config.RateLimitWindow,
		LimitNotifications: config.LimitNotifications,
	})

	chatServer := server.NewChatServer(log, chatService, presenceService, config.ConnectionBufferSize)

	return &App{
		log:           log,
		orchestrator:  orchestrator,
		Tokens:        tokens,
		Chat:          chatService,
		Notifications: notificationService,
		Presence:      presenceService,
		HTTPHandler:   handler,
		GRPCServer:    server.NewGRPCServer(log, tokens, gate, chatServer),
	}
}

func (a *App) Monitoring() *observability.MonitoringManager {
	return a.orchestrator.Monitoring()
}

// Start runs the real-time core until ctx is done or Stop is called.
func (a *App) Start(ctx context.Context) error {
	return a.orchestrator.Start(ctx)
}

// Stop ends the gRPC streams first so their sessions detach, then the core.
// Connect streams only end with their client: once ctx is done they are cut.
func (a *App) Stop(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		a.GRPCServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.log.Warn("gRPC streams still open, forcing stop")
		a.GRPCServer.Stop()
		<-stopped
	}
	a.orchestrator.Stop()
}
