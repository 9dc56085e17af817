package auth

import "context"

type usernameContextKey struct{}

// SetUsernameContext stores the username resolved from an API key.
func SetUsernameContext(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey{}, username)
}

// GetUsernameFromContext returns the username stored by SetUsernameContext.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey{}).(string)
	return username, ok && username != ""
}
