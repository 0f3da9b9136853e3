package errors

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mapping struct {
	target     error
	code       codes.Code
	httpStatus int
}

// Order matters: the first matching sentinel wins.
var mappings = []mapping{
	{ErrMissingToken, codes.Unauthenticated, http.StatusUnauthorized},
	{ErrExpiredToken, codes.Unauthenticated, http.StatusUnauthorized},
	{ErrInvalidToken, codes.Unauthenticated, http.StatusUnauthorized},
	{ErrHandshakeRejected, codes.Unauthenticated, http.StatusUnauthorized},
	{ErrUnauthenticated, codes.Unauthenticated, http.StatusUnauthorized},
	{ErrOriginNotAllowed, codes.PermissionDenied, http.StatusForbidden},
	{ErrSelfConversation, codes.InvalidArgument, http.StatusBadRequest},
	{ErrEmptyMessage, codes.InvalidArgument, http.StatusBadRequest},
	{ErrMessageTooLong, codes.InvalidArgument, http.StatusBadRequest},
	{ErrInvalidCommand, codes.InvalidArgument, http.StatusBadRequest},
	{ErrInvalidCursor, codes.InvalidArgument, http.StatusBadRequest},
	{ErrUnknownNotificationKind, codes.InvalidArgument, http.StatusBadRequest},
	{ErrConversationNotFound, codes.NotFound, http.StatusNotFound},
	{ErrConversationConflict, codes.Aborted, http.StatusConflict},
	{ErrRouterStopped, codes.Unavailable, http.StatusServiceUnavailable},
}

// MapToGRPCError converts a domain error into a gRPC status error.
// Errors already carrying a status are returned untouched.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal error")
}

// HTTPStatus returns the HTTP status code matching a domain error.
func HTTPStatus(err error) int {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.httpStatus
		}
	}
	return http.StatusInternalServerError
}
