package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"social-lab/contract"
	"social-lab/domain/event"
	"social-lab/domain/notification"
	"social-lab/errors"
	"social-lab/mocks"
	"social-lab/repositories"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNotificationService_Notify_Stores_Then_Dispatches(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockINotificationRepository(ctrl)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	service := NewNotificationService(logs.GetLoggerFromLevel(slog.LevelDebug), repository, dispatcher)
	at := time.Now().UTC()

	var stored repositories.DiskNotification
	gomock.InOrder(
		repository.EXPECT().Store(gomock.Any()).DoAndReturn(func(n repositories.DiskNotification) error {
			stored = n
			return nil
		}),
		dispatcher.EXPECT().Dispatch(gomock.Any(), "bob", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, e event.Event) contract.Outcome {
				pushed, ok := e.(event.NewNotification)
				req.True(ok)
				req.Equal(stored.ID, pushed.Notification.ID)
				req.False(pushed.Notification.IsRead)
				return contract.Delivered
			}),
	)

	// When alice follows bob
	n, err := service.Notify(context.Background(), notification.NotifyCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Kind:       notification.KindFollow,
		CreatedAt:  at,
	})

	// Then bob gets an unread notification with the default text
	req.NoError(err)
	req.NotNil(n)
	req.Equal("started following you", n.Message)
	req.Equal("bob", stored.ReceiverID)
	req.Equal("follow", stored.Kind)
	req.False(stored.IsRead)
	req.Equal(at, stored.At)
}

func TestNotificationService_Notify_Self_Is_Skipped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service := NewNotificationService(logs.GetLoggerFromLevel(slog.LevelDebug),
		mocks.NewMockINotificationRepository(ctrl), mocks.NewMockIDispatcher(ctrl))

	// When alice likes her own post
	n, err := service.Notify(context.Background(), notification.NotifyCommand{
		SenderID:   "alice",
		ReceiverID: "alice",
		Kind:       notification.KindLike,
	})

	// Then nothing is stored nor pushed
	req.NoError(err)
	req.Nil(n)
}

func TestNotificationService_Notify_Rejects_Invalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := NewNotificationService(logs.GetLoggerFromLevel(slog.LevelDebug),
		mocks.NewMockINotificationRepository(ctrl), mocks.NewMockIDispatcher(ctrl))

	testCases := []struct {
		name string
		cmd  notification.NotifyCommand
		err  error
	}{
		{"unknown kind", notification.NotifyCommand{SenderID: "a", ReceiverID: "b", Kind: "poke"}, errors.ErrUnknownNotificationKind},
		{"missing receiver", notification.NotifyCommand{SenderID: "a", Kind: notification.KindLike}, errors.ErrInvalidCommand},
		{"missing kind", notification.NotifyCommand{SenderID: "a", ReceiverID: "b"}, errors.ErrInvalidCommand},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Notify(context.Background(), tc.cmd)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestNotificationService_Store_Failure_Dispatches_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockINotificationRepository(ctrl)
	service := NewNotificationService(logs.GetLoggerFromLevel(slog.LevelDebug), repository, mocks.NewMockIDispatcher(ctrl))

	repository.EXPECT().Store(gomock.Any()).Return(context.DeadlineExceeded)

	_, err := service.Notify(context.Background(), notification.NotifyCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Kind:       notification.KindComment,
		Message:    "nice shot",
	})
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestNotificationService_List_And_Read(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockINotificationRepository(ctrl)
	service := NewNotificationService(logs.GetLoggerFromLevel(slog.LevelDebug), repository, mocks.NewMockIDispatcher(ctrl))
	id := uuid.New()

	repository.EXPECT().List("bob", 10).Return([]repositories.DiskNotification{
		{ID: id, ReceiverID: "bob", SenderID: "alice", Kind: "like", Message: "liked your post"},
	}, nil)
	repository.EXPECT().MarkAllRead("bob").Return(1, nil)
	repository.EXPECT().CountUnread("bob").Return(0, nil)

	listed, err := service.List(context.Background(), "bob", 10)
	req.NoError(err)
	req.Len(listed, 1)
	req.Equal(id, listed[0].ID)
	req.Equal(notification.KindLike, listed[0].Kind)

	changed, err := service.MarkAllRead(context.Background(), "bob")
	req.NoError(err)
	req.Equal(1, changed)

	unread, err := service.CountUnread(context.Background(), "bob")
	req.NoError(err)
	req.Zero(unread)
}
