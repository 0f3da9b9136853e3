package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "social-lab/errors"
	"social-lab/observability"
)

// Gate admits or rejects a real-time connection attempt.
// It only verifies credentials: registering the admitted connection is the router's job.
type Gate struct {
	log    *slog.Logger
	tokens *TokenManager
}

func NewGate(log *slog.Logger, tokens *TokenManager) *Gate {
	return &Gate{log: log, tokens: tokens}
}

// Admit validates rawToken and returns the identity to attach to the connection.
// A rejection wraps ErrHandshakeRejected; its message is the reason reported to the client.
func (g *Gate) Admit(_ context.Context, transport, rawToken string) (Identity, error) {
	claims, err := g.tokens.ValidateToken(BearerToken(rawToken))
	if err != nil {
		reason := RejectionReason(err)
		observability.HandshakeRejections.WithLabelValues(transport, reason).Inc()
		g.log.Warn("Handshake rejected", "transport", transport, "reason", reason)
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrHandshakeRejected, err)
	}
	return Identity{UserID: claims.UserID, Roles: claims.Roles}, nil
}

// BearerToken strips an optional "Bearer " scheme.
func BearerToken(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

// RejectionReason is the short reason string reported for a failed handshake.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrMissingToken):
		return "missing_token"
	case errors.Is(err, apperrors.ErrExpiredToken):
		return "expired_token"
	default:
		return "invalid_token"
	}
}
