package httpx

import (
	"context"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
)

type contextKey string

const sessionKey contextKey = "session"

// SetSessionInContext stores the authenticated session in the request context.
func SetSessionInContext(ctx context.Context, sess *domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// GetSessionFromContext retrieves the authenticated session from the request
// context. The second return is false when the request did not pass RequireAuth.
func GetSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*domainauth.Session)
	return sess, ok && sess != nil
}
