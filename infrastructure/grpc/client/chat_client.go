package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"social-lab/domain/event"
	"social-lab/infrastructure/grpc/chatrpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// tokenCredentials sends the session token as "authorization" metadata on every call.
type tokenCredentials struct {
	token string
}

func (t tokenCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + t.token}, nil
}

func (tokenCredentials) RequireTransportSecurity() bool {
	return false
}

// ChatClient is the native client of the chat service.
type ChatClient struct {
	conn *grpc.ClientConn
	rpc  chatrpc.ChatServiceClient
}

// NewChatClient connects to address with the given session token.
// Extra options are appended, tests use them to plug an in-memory dialer.
func NewChatClient(address, token string, opts ...grpc.DialOption) (*ChatClient, error) {
	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(tokenCredentials{token: token}),
	}, opts...)
	conn, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to server at %s: %w", address, err)
	}
	return &ChatClient{conn: conn, rpc: chatrpc.NewChatServiceClient(conn)}, nil
}

// Subscribe opens the push stream and calls handle for every frame, in order,
// until ctx is done, the server ends the stream or handle fails.
func (c *ChatClient) Subscribe(ctx context.Context, handle func(event.Frame) error) error {
	stream, err := c.rpc.Connect(ctx, &chatrpc.ConnectRequest{})
	if err != nil {
		return err
	}
	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := handle(*frame); err != nil {
			return err
		}
	}
}

func (c *ChatClient) Send(ctx context.Context, receiverID, text string) (event.MessageRecord, error) {
	resp, err := c.rpc.SendMessage(ctx, &chatrpc.SendMessageRequest{ReceiverID: receiverID, Message: text})
	if err != nil {
		return event.MessageRecord{}, err
	}
	return resp.Message, nil
}

func (c *ChatClient) History(ctx context.Context, peerID string, cursor *string) ([]event.MessageRecord, *string, error) {
	resp, err := c.rpc.GetMessages(ctx, &chatrpc.GetMessagesRequest{PeerID: peerID, Cursor: cursor})
	if err != nil {
		return nil, nil, err
	}
	return resp.Messages, resp.Cursor, nil
}

func (c *ChatClient) Close() error {
	return c.conn.Close()
}
