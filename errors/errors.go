package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrRouterStopped  = fmt.Errorf("presence router is not running")
	ErrSinkSaturated  = fmt.Errorf("connection sink is saturated")
	ErrSinkClosed     = fmt.Errorf("connection sink is closed")
	ErrInvalidCommand = fmt.Errorf("invalid command")

	// Handshake
	ErrHandshakeRejected = fmt.Errorf("handshake rejected")
	ErrMissingToken      = fmt.Errorf("authentication token is missing")
	ErrInvalidToken      = fmt.Errorf("invalid token")
	ErrExpiredToken      = fmt.Errorf("token has expired")
	ErrTokenGeneration   = fmt.Errorf("token generation failed")
	ErrUnauthenticated   = fmt.Errorf("unauthenticated")
	ErrOriginNotAllowed  = fmt.Errorf("origin not allowed")

	// Chat
	ErrSelfConversation     = fmt.Errorf("cannot open a conversation with yourself")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrConversationConflict = fmt.Errorf("conversation write kept conflicting")
	ErrEmptyMessage         = fmt.Errorf("message text is empty")
	ErrMessageTooLong       = fmt.Errorf("message text is too long")
	ErrInvalidCursor        = fmt.Errorf("invalid cursor")

	// Notifications
	ErrUnknownNotificationKind = fmt.Errorf("unknown notification kind")
)
