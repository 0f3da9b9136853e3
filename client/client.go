package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"social-lab/auth"
	"social-lab/domain/event"
	"social-lab/infrastructure/grpc/client"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
// Without CHAT_TOKEN a token is minted for CHAT_USER_ID with the shared secret.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:9090"`
	Token         string `env:"CHAT_TOKEN"`
	UserID        string `env:"CHAT_USER_ID"`
	PeerID        string `env:"CHAT_PEER_ID"`
	JWTSecret     string `env:"JWT_SECRET"`
	TokenIssuer   string `env:"TOKEN_ISSUER,default=social-lab"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run subscribes to the push stream and prints every frame.
// With CHAT_PEER_ID set, the history with the peer is printed first and each line typed on stdin is sent to them.
func run() (int, error) {
	// 1. Configuration
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	token, err := resolveToken(config)
	if err != nil {
		return exitConfig, err
	}

	// 2. Context to handle Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connection
	chatClient, err := client.NewChatClient(config.ServerAddress, token)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = chatClient.Close()
	}()

	if config.PeerID != "" {
		history, _, err := chatClient.History(ctx, config.PeerID, nil)
		if err != nil {
			return exitRuntime, fmt.Errorf("history: %w", err)
		}
		// Oldest first on a terminal
		for i := len(history) - 1; i >= 0; i-- {
			printMessage(history[i])
		}
		go sendLines(ctx, chatClient, config.PeerID)
	}

	log.Info(fmt.Sprintf(">>> Connected to %s (Ctrl+C to quit)...", config.ServerAddress))

	// 4. Reception loop, until Ctrl+C or the server ends the stream
	err = chatClient.Subscribe(ctx, func(frame event.Frame) error {
		switch frame.Type {
		case event.NewMessageType:
			record, err := frame.DecodeMessage()
			if err != nil {
				return err
			}
			printMessage(record)
		case event.NewNotificationType:
			record, err := frame.DecodeNotification()
			if err != nil {
				return err
			}
			color.Yellow.Printf("[%s] %s %s\n", record.CreatedAt.Local().Format(time.TimeOnly), record.Sender, record.Message)
		default:
			log.Debug("Unknown frame ignored", "type", frame.Type)
		}
		return nil
	})
	if err != nil {
		return exitRuntime, fmt.Errorf("stream error: %w", err)
	}
	log.Info("Stopping client...")
	return exitOK, nil
}

func resolveToken(config Config) (string, error) {
	if config.Token != "" {
		return config.Token, nil
	}
	if config.JWTSecret == "" || config.UserID == "" {
		return "", fmt.Errorf("config error: CHAT_TOKEN, or JWT_SECRET and CHAT_USER_ID, are required")
	}
	return auth.NewTokenManager(config.JWTSecret, config.TokenIssuer).GenerateToken(config.UserID, []string{"user"}, 24*time.Hour)
}

func sendLines(ctx context.Context, chatClient *client.ChatClient, peerID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if _, err := chatClient.Send(ctx, peerID, text); err != nil {
			color.Red.Printf("not sent: %v\n", err)
		}
	}
}

func printMessage(record event.MessageRecord) {
	color.Cyan.Printf("[%s] %s: ", record.CreatedAt.Local().Format(time.TimeOnly), record.SenderID)
	fmt.Println(record.Message)
}
