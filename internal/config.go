package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	TokenIssuer          string        `env:"TOKEN_ISSUER,default=social-lab"`
	AllowedOrigin        string        `env:"ALLOWED_ORIGIN,default=http://localhost:5173"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	HTTPPort             int           `env:"HTTP_PORT,default=8080"`
	GRPCPort             int           `env:"GRPC_PORT,default=9090"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	LifecycleBufferSize  int           `env:"LIFECYCLE_BUFFER_SIZE,default=256"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MonitoringInterval   time.Duration `env:"MONITORING_INTERVAL,default=5s"`
	LimitMessages        int           `env:"LIMIT_MESSAGES,default=50"`
	LimitNotifications   int           `env:"LIMIT_NOTIFICATIONS,default=50"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=2000"`
	ConversationRetries  int           `env:"CONVERSATION_RETRIES,default=5"`
	RateLimitRequests    int           `env:"RATE_LIMIT_REQUESTS,default=100"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// AllowedOrigins splits ALLOWED_ORIGIN, a comma separated list.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Validate catches values the environment parser accepts but the service cannot run with.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ConnectionBufferSize < 1 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	}
	if c.LimitMessages < 1 {
		return fmt.Errorf("LIMIT_MESSAGES must be positive, got %d", c.LimitMessages)
	}
	if c.ConversationRetries < 1 {
		return fmt.Errorf("CONVERSATION_RETRIES must be positive, got %d", c.ConversationRetries)
	}
	if len(c.AllowedOrigins()) == 0 {
		return fmt.Errorf("ALLOWED_ORIGIN must name at least one origin")
	}
	return nil
}
