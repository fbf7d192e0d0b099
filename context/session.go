package context

import (
	"context"
)

type contextkey string

const (
	sessionKey contextkey = "session"
)

// WithSessionKey binds the hashed session key of the browser to ctx.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey, key)
}

// SessionKey returns the hashed session key, or "" when the request did
// not pass through the session middleware.
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKey).(string)
	return key
}
