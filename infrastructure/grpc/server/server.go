package server

import (
	"log/slog"

	"social-lab/auth"
	"social-lab/infrastructure/grpc/chatrpc"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
)

// NewGRPCServer builds the gRPC server with the logging and handshake interceptors
// and the chat service registered.
func NewGRPCServer(log *slog.Logger, tokens *auth.TokenManager, gate *auth.Gate, chatServer *ChatServer) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
			AuthInterceptor(tokens),
		),
		grpc.ChainStreamInterceptor(
			StreamAuthInterceptor(gate),
		),
	)
	chatrpc.RegisterChatServiceServer(s, chatServer)
	return s
}
