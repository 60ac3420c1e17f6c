package utils

import "context"

type contextKey string

const UserIDKey contextKey = "user_id"

// SetUserContext sets the authenticated user into context (called by middleware)
func SetUserContext(ctx context.Context, id uint) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserIDFromContext retrieves userID safely
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(UserIDKey).(uint)
	return id, ok && id != 0
}
