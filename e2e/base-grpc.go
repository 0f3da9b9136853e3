package e2e

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"social-lab/auth"
	"social-lab/infrastructure/grpc/client"

	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type BaseGrpcSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseGrpcSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.MasterAddr == "" {
		s.T().Skip("MASTER_ADDR is not set, no server to test against")
	}
	s.Require().NotEmpty(s.Config.JWTSecret, "JWT_SECRET must match the server's")
}

// Token mints a session token the server accepts.
func (s *BaseGrpcSuite) Token(userID string) string {
	token, err := auth.NewTokenManager(s.Config.JWTSecret, s.Config.Issuer).
		GenerateToken(userID, []string{"user"}, time.Hour)
	s.Require().NoError(err)
	return token
}

// ChatClient connects as userID with logging, colors, and JSON debugging
func (s *BaseGrpcSuite) ChatClient(t *testing.T, name, userID string) *client.ChatClient {
	// 1. Print a colorized header for the connection step in logs
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	// 2. Create the client with a Unary Interceptor for logging
	c, err := client.NewChatClient(s.Config.MasterAddr, s.Token(userID),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, indent(req))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, indent(reply))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.MasterAddr)
	return c
}

// WithChat provides a chat client as userID within a contextual test step
func (s *BaseGrpcSuite) WithChat(name, userID string, fn func(ctx context.Context, c *client.ChatClient)) {
	c := s.ChatClient(s.T(), name, userID)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fn(ctx, c)
}

func indent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
