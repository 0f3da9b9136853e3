// Package apptest runs the whole backend in-process on a temporary store.
package apptest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"social-lab/internal"
	"social-lab/internal/app"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const Secret = "integration-shared-secret"

type Harness struct {
	*app.App
	Config internal.Config
	DB     *badger.DB
}

// Config returns the settings used by Start, small enough to exercise limits in tests.
func Config(t *testing.T) internal.Config {
	return internal.Config{
		JWTSecret:            Secret,
		TokenIssuer:          "social-lab",
		AllowedOrigin:        "http://localhost:5173",
		BadgerFilepath:       t.TempDir(),
		LogLevel:             "ERROR",
		ConnectionBufferSize: 16,
		LifecycleBufferSize:  16,
		DeliveryTimeout:      time.Second,
		RestartInterval:      10 * time.Millisecond,
		MonitoringInterval:   50 * time.Millisecond,
		LimitMessages:        10,
		LimitNotifications:   20,
		MaxMessageLength:     200,
		ConversationRetries:  20,
		ShutdownTimeout:      time.Second,
	}
}

// Start runs the app until the test ends. mutate adjusts the configuration first.
func Start(t *testing.T, mutate ...func(*internal.Config)) *Harness {
	t.Helper()
	config := Config(t)
	for _, m := range mutate {
		m(&config)
	}
	require.NoError(t, config.Validate())

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	a := app.New(logs.GetLoggerFromLevel(slog.LevelError), db, config)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.Start(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer stopCancel()
		a.Stop(stopCtx)
		cancel()
		<-done
		_ = db.Close()
	})
	return &Harness{App: a, Config: config, DB: db}
}

// Token mints a session token for userID, as the account service would.
func (h *Harness) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := h.Tokens.GenerateToken(userID, []string{"user"}, time.Hour)
	require.NoError(t, err)
	return token
}

// WaitOnline blocks until userID has a registered connection.
func (h *Harness) WaitOnline(t *testing.T, userID string) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Presence.Online(userID) }, 2*time.Second, 5*time.Millisecond)
}

// WaitOffline blocks until userID has no registered connection.
func (h *Harness) WaitOffline(t *testing.T, userID string) {
	t.Helper()
	require.Eventually(t, func() bool { return !h.Presence.Online(userID) }, 2*time.Second, 5*time.Millisecond)
}
