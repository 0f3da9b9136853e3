package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"social-lab/contract"
	"social-lab/domain/chat"
	"social-lab/domain/event"
	apperrors "social-lab/errors"
	"social-lab/observability"
	"social-lab/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, error)
	GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) ([]chat.Message, *string, error)
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
}

// ChatService persists one-to-one messages and pushes them to the receiver when online.
type ChatService struct {
	log              *slog.Logger
	conversations    repositories.IConversationRepository
	messages         repositories.IMessageRepository
	dispatcher       contract.IDispatcher
	validator        *validator.Validate
	maxMessageLength int
	now              func() time.Time
}

func NewChatService(
	log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	dispatcher contract.IDispatcher,
	maxMessageLength int,
) *ChatService {
	return &ChatService{
		log:              log,
		conversations:    conversations,
		messages:         messages,
		dispatcher:       dispatcher,
		validator:        validator.New(),
		maxMessageLength: maxMessageLength,
		now:              time.Now,
	}
}

// SendMessage runs the delivery workflow:
//  1. resolve or create the conversation of the pair,
//  2. append the message and advance the conversation in one write,
//  3. dispatch new_message to the receiver.
//
// A persistence failure is returned before anything is pushed. Once persisted the
// message is returned whatever the dispatch outcome, the receiver will find it in
// the history.
func (s *ChatService) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, error) {
	cmd.Text = strings.TrimSpace(cmd.Text)
	if err := s.validateSend(cmd); err != nil {
		return chat.Message{}, err
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = s.now().UTC()
	}

	conversation, created, err := s.conversations.GetOrCreate(cmd.SenderID, cmd.ReceiverID, cmd.CreatedAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("resolve conversation: %w", err)
	}
	if created {
		s.log.Info("Conversation created",
			"conversation_id", conversation.ID,
			"sender_id", cmd.SenderID,
			"receiver_id", cmd.ReceiverID)
	}

	stored, err := s.messages.Append(repositories.DiskMessage{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		SenderID:       cmd.SenderID,
		ReceiverID:     cmd.ReceiverID,
		Text:           cmd.Text,
		At:             cmd.CreatedAt,
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("append message: %w", err)
	}
	observability.MessagesSent.Inc()

	message := toMessage(stored)
	outcome := s.dispatcher.Dispatch(ctx, message.ReceiverID, event.NewMessage{Message: message})
	s.log.Debug("Message sent",
		"conversation_id", message.ConversationID,
		"seq", message.Seq,
		"outcome", outcome)
	return message, nil
}

func (s *ChatService) validateSend(cmd chat.SendMessageCommand) error {
	if cmd.Text == "" {
		return apperrors.ErrEmptyMessage
	}
	if err := s.validator.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidCommand, err)
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(cmd.Text) > s.maxMessageLength {
		return fmt.Errorf("%w: maximum is %d characters", apperrors.ErrMessageTooLong, s.maxMessageLength)
	}
	if cmd.SenderID == cmd.ReceiverID {
		return apperrors.ErrSelfConversation
	}
	return nil
}

// GetMessages returns a page of the conversation between the user and a peer, newest first.
// A pair that never talked has an empty history, not an error.
func (s *ChatService) GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) ([]chat.Message, *string, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCommand, err)
	}
	if cmd.UserID == cmd.PeerID {
		return nil, nil, apperrors.ErrSelfConversation
	}

	conversation, err := s.conversations.Find(cmd.UserID, cmd.PeerID)
	if errors.Is(err, apperrors.ErrConversationNotFound) {
		return []chat.Message{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	diskMessages, cursor, err := s.messages.GetMessages(conversation.ID, cmd.Cursor)
	if err != nil {
		return nil, nil, err
	}
	return lo.Map(diskMessages, func(m repositories.DiskMessage, _ int) chat.Message {
		return toMessage(m)
	}), cursor, nil
}

// ListConversations returns the user's conversations, most recently active first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidCommand)
	}
	diskConversations, err := s.conversations.ListForUser(userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(diskConversations, func(c repositories.DiskConversation, _ int) chat.Conversation {
		return toConversation(c)
	}), nil
}

func toMessage(m repositories.DiskMessage) chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Text:           m.Text,
		CreatedAt:      m.At,
	}
}

func toConversation(c repositories.DiskConversation) chat.Conversation {
	return chat.Conversation{
		ID:            c.ID,
		Members:       chat.Members(c.Members),
		MessageCount:  c.MessageCount,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: lo.FromPtr(c.LastMessageAt),
	}
}
