package auth

import "context"

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// Identity is what a successful handshake attaches to a connection for its lifetime.
type Identity struct {
	UserID string
	Roles  []string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, identity.UserID)
	return context.WithValue(ctx, RolesKey, identity.Roles)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return Identity{}, false
	}
	roles, _ := ctx.Value(RolesKey).([]string)
	return Identity{UserID: userID, Roles: roles}, true
}
