package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOIDC uses OAuth/OIDC for authentication.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev uses config-driven dev authentication (for development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev)", v)
	}
}

// OIDCConfig contains OAuth/OIDC configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	IssuerURL    string `env:"ISSUER_URL"`
	Scope        string `env:"SCOPE"        envDefault:"openid profile email groups"`
	// TenantClaim is the ID-token claim carrying the tenant scope.
	TenantClaim string `env:"TENANT_CLAIM" envDefault:"tenant_id"`
}

// DevAuthConfig controls the dev authentication identity.
// Used when AUTH_MODE=dev for development and testing.
type DevAuthConfig struct {
	UserID          string        `env:"USER_ID"          envDefault:"dev-user"`
	TenantID        string        `env:"TENANT_ID"        envDefault:"dev-tenant"`
	Email           string        `env:"EMAIL"            envDefault:"dev@example.com"`
	Groups          []string      `env:"GROUPS"           envDefault:"operators"       envSeparator:";"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminGroup is the directory group granting the admin role.
	AdminGroup string `env:"ADMIN_GROUP" envDefault:"admins"`

	// OperatorGroup is the directory group granting the operator role.
	// Everyone else is a viewer.
	OperatorGroup string `env:"OPERATOR_GROUP" envDefault:"operators"`
}
