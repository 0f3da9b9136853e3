package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"social-lab/contract"
	"social-lab/domain/event"
	"social-lab/domain/notification"
	apperrors "social-lab/errors"
	"social-lab/observability"
	"social-lab/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type INotificationService interface {
	Notify(ctx context.Context, cmd notification.NotifyCommand) (*notification.Notification, error)
	List(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// NotificationService is the entry point of social workflows (follow, like, comment, post)
// that need to tell a user something happened.
type NotificationService struct {
	log           *slog.Logger
	notifications repositories.INotificationRepository
	dispatcher    contract.IDispatcher
	validator     *validator.Validate
	now           func() time.Time
}

func NewNotificationService(log *slog.Logger, notifications repositories.INotificationRepository, dispatcher contract.IDispatcher) *NotificationService {
	return &NotificationService{
		log:           log,
		notifications: notifications,
		dispatcher:    dispatcher,
		validator:     validator.New(),
		now:           time.Now,
	}
}

// Notify persists an unread notification then pushes new_notification to its receiver.
// Acting on one's own content notifies nobody: nil is returned and nothing is stored.
func (s *NotificationService) Notify(ctx context.Context, cmd notification.NotifyCommand) (*notification.Notification, error) {
	cmd.Message = strings.TrimSpace(cmd.Message)
	if err := s.validator.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCommand, err)
	}
	if !cmd.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownNotificationKind, cmd.Kind)
	}
	if cmd.SenderID == cmd.ReceiverID {
		s.log.Debug("Self notification skipped", "user_id", cmd.SenderID, "kind", cmd.Kind)
		return nil, nil
	}
	if cmd.Message == "" {
		cmd.Message = cmd.Kind.DefaultMessage()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = s.now().UTC()
	}

	n := notification.Notification{
		ID:         uuid.New(),
		ReceiverID: cmd.ReceiverID,
		SenderID:   cmd.SenderID,
		Kind:       cmd.Kind,
		Message:    cmd.Message,
		CreatedAt:  cmd.CreatedAt,
	}
	if err := s.notifications.Store(fromNotification(n)); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	observability.NotificationsCreated.WithLabelValues(string(n.Kind)).Inc()

	outcome := s.dispatcher.Dispatch(ctx, n.ReceiverID, event.NewNotification{Notification: n})
	s.log.Debug("Notification created", "id", n.ID, "kind", n.Kind, "outcome", outcome)
	return &n, nil
}

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	disk, err := s.notifications.List(userID, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(disk, func(n repositories.DiskNotification, _ int) notification.Notification {
		return toNotification(n)
	}), nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.notifications.MarkAllRead(userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.notifications.CountUnread(userID)
}

func fromNotification(n notification.Notification) repositories.DiskNotification {
	return repositories.DiskNotification{
		ID:         n.ID,
		ReceiverID: n.ReceiverID,
		SenderID:   n.SenderID,
		Kind:       string(n.Kind),
		Message:    n.Message,
		IsRead:     n.IsRead,
		At:         n.CreatedAt,
	}
}

func toNotification(n repositories.DiskNotification) notification.Notification {
	return notification.Notification{
		ID:         n.ID,
		ReceiverID: n.ReceiverID,
		SenderID:   n.SenderID,
		Kind:       notification.Kind(n.Kind),
		Message:    n.Message,
		IsRead:     n.IsRead,
		CreatedAt:  n.At,
	}
}
