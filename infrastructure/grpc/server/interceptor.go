package server

import (
	"context"

	"social-lab/auth"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor validates the session token of unary calls and puts the identity in the context.
// Unary calls are not connection handshakes, so they bypass the gate and its rejection counter.
func AuthInterceptor(tokens *auth.TokenManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		claims, err := tokens.ValidateToken(auth.BearerToken(tokenFromMetadata(ctx)))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, auth.RejectionReason(err))
		}
		identity := auth.Identity{UserID: claims.UserID, Roles: claims.Roles}
		return handler(auth.WithIdentity(ctx, identity), req)
	}
}

// StreamAuthInterceptor is the handshake of the Connect stream.
// A rejected stream ends before the handler runs, so it never reaches the registry.
func StreamAuthInterceptor(gate *auth.Gate) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		identity, err := gate.Admit(ss.Context(), Transport, tokenFromMetadata(ss.Context()))
		if err != nil {
			return status.Error(codes.Unauthenticated, auth.RejectionReason(err))
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: auth.WithIdentity(ss.Context(), identity)})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
