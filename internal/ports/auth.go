package ports

// Package ports defines interfaces that bridge the service layer to
// external authentication collaborators.

import (
	"context"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
)

// BeginInput groups parameters for AuthProvider.Begin.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for AuthProvider.Exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider abstracts an identity provider (OIDC in production, a
// config-driven stub in development). Begin returns the provider auth URL
// plus state and nonce; Exchange trades an authorization code for the
// authenticated identity, including its tenant scope.
type AuthProvider interface {
	Begin(ctx context.Context, input BeginInput) (authURL, state, nonce string, err error)
	Exchange(ctx context.Context, input ExchangeInput) (domainauth.Identity, error)
}

// SessionStore persists server-side sessions keyed by opaque session ID.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// RoleMapper maps provider groups onto an application role.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}
