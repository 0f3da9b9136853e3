package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"social-lab/auth"
	"social-lab/contract"

	"github.com/google/uuid"
)

const detachTimeout = 5 * time.Second

type IPresenceService interface {
	Attach(ctx context.Context, identity auth.Identity, transport string, sink contract.EventSink) (*Session, error)
	Online(userID string) bool
	Count() int
}

// PresenceService gives transports a single way to attach an admitted connection and
// to detach it once the transport closed.
type PresenceService struct {
	log      *slog.Logger
	router   contract.IPresenceRouter
	presence contract.IPresenceReader
}

func NewPresenceService(log *slog.Logger, router contract.IPresenceRouter, presence contract.IPresenceReader) *PresenceService {
	return &PresenceService{log: log, router: router, presence: presence}
}

// Session is one attached connection.
type Session struct {
	ConnectionID contract.ConnectionID
	UserID       string
	Transport    string
	router       contract.IPresenceRouter
	log          *slog.Logger
	detachOnce   sync.Once
	detachErr    error
}

// Attach registers sink as the user's live connection and returns its session.
// Connection ids are "{transport}-{uuid}" and never reused.
func (s *PresenceService) Attach(ctx context.Context, identity auth.Identity, transport string, sink contract.EventSink) (*Session, error) {
	connectionID := contract.ConnectionID(fmt.Sprintf("%s-%s", transport, uuid.NewString()))
	if err := s.router.Connected(ctx, identity.UserID, connectionID, sink); err != nil {
		return nil, fmt.Errorf("attach connection: %w", err)
	}
	s.log.Debug("Session attached", "user_id", identity.UserID, "connection_id", connectionID, "transport", transport)
	return &Session{
		ConnectionID: connectionID,
		UserID:       identity.UserID,
		Transport:    transport,
		router:       s.router,
		log:          s.log,
	}, nil
}

func (s *PresenceService) Online(userID string) bool {
	return s.presence.Online(userID)
}

func (s *PresenceService) Count() int {
	return s.presence.Len()
}

// Detach reports the close of the connection. Only the first call has an effect.
// The transport context is usually already canceled when a connection drops,
// so the close is reported on a context detached from it.
func (sess *Session) Detach(ctx context.Context) error {
	sess.detachOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
		defer cancel()
		sess.detachErr = sess.router.Closed(closeCtx, sess.ConnectionID)
		if sess.detachErr != nil {
			sess.log.Warn("Session detach failed", "connection_id", sess.ConnectionID, "error", sess.detachErr)
			return
		}
		sess.log.Debug("Session detached", "user_id", sess.UserID, "connection_id", sess.ConnectionID)
	})
	return sess.detachErr
}
