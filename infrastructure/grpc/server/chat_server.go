package server

import (
	"context"
	"log/slog"

	"social-lab/auth"
	"social-lab/domain/chat"
	"social-lab/domain/event"
	"social-lab/errors"
	"social-lab/infrastructure/grpc/chatrpc"
	"social-lab/services"
	"social-lab/sink"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const Transport = "grpc"

type ChatServer struct {
	chatrpc.UnimplementedChatServiceServer
	log                  *slog.Logger
	chatService          services.IChatService
	presenceService      services.IPresenceService
	connectionBufferSize int
}

func NewChatServer(log *slog.Logger, chatService services.IChatService,
	presenceService services.IPresenceService, connectionBufferSize int) *ChatServer {
	return &ChatServer{
		log:                  log,
		chatService:          chatService,
		presenceService:      presenceService,
		connectionBufferSize: connectionBufferSize,
	}
}

// Connect holds the push stream of an admitted client.
// The stream interceptor already ran the handshake, so the identity is in the context.
// It blocks until the client goes away, then detaches this connection only.
func (s *ChatServer) Connect(_ *chatrpc.ConnectRequest, stream grpc.ServerStreamingServer[event.Frame]) error {
	ctx := stream.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing_token")
	}

	connection := sink.NewConnectionSink(s.connectionBufferSize)
	defer connection.Close()

	session, err := s.presenceService.Attach(ctx, identity, Transport, connection)
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	defer func() { _ = session.Detach(ctx) }()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Client disconnected", "user_id", identity.UserID, "connection_id", session.ConnectionID)
			return nil
		case evt := <-connection.Events():
			frame, err := event.Encode(evt)
			if err != nil {
				s.log.Error("Event could not be encoded", "type", evt.Type(), "error", err)
				continue
			}
			if err := stream.Send(&frame); err != nil {
				s.log.Error("failed to push event to stream",
					"user_id", identity.UserID,
					"connection_id", session.ConnectionID,
					"error", err)
				return err
			}
		}
	}
}

func (s *ChatServer) SendMessage(ctx context.Context, req *chatrpc.SendMessageRequest) (*chatrpc.SendMessageResponse, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.MapToGRPCError(errors.ErrUnauthenticated)
	}
	message, err := s.chatService.SendMessage(ctx, chat.SendMessageCommand{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Text:       req.Message,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatrpc.SendMessageResponse{Message: event.ToMessageRecord(message)}, nil
}

func (s *ChatServer) GetMessages(ctx context.Context, req *chatrpc.GetMessagesRequest) (*chatrpc.GetMessagesResponse, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.MapToGRPCError(errors.ErrUnauthenticated)
	}
	messages, cursor, err := s.chatService.GetMessages(ctx, chat.GetMessagesCommand{
		UserID: userID,
		PeerID: req.PeerID,
		Cursor: req.Cursor,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatrpc.GetMessagesResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) event.MessageRecord {
			return event.ToMessageRecord(m)
		}),
		Cursor: cursor,
	}, nil
}
