package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/oncallops/alertsync/config"
	"github.com/oncallops/alertsync/internal/adapters/devauth"
	"github.com/oncallops/alertsync/internal/adapters/oidc"
	"github.com/oncallops/alertsync/internal/ports"
)

// BuildAuthProvider selects the identity provider from config. Dev mode
// refuses to run outside IsDev so a misconfigured production deployment
// cannot silently accept everyone.
//
//nolint:ireturn // the provider is chosen at runtime from config.
func BuildAuthProvider(cfg *config.AppConfig, logger *slog.Logger) (ports.AuthProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		if !cfg.IsDev {
			return nil, fmt.Errorf("auth mode %q requires DEV=true", cfg.Auth.Mode)
		}
		if logger != nil {
			logger.Warn("dev auth enabled; do not use in production",
				"user_id", cfg.Auth.DevAuth.UserID,
				"tenant_id", cfg.Auth.DevAuth.TenantID)
		}
		return devauth.NewProvider(devauth.Config{
			UserID:          cfg.Auth.DevAuth.UserID,
			TenantID:        cfg.Auth.DevAuth.TenantID,
			Email:           cfg.Auth.DevAuth.Email,
			Groups:          cfg.Auth.DevAuth.Groups,
			SessionDuration: cfg.Auth.DevAuth.SessionDuration,
		})

	case config.AuthModeOIDC:
		return oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  CallbackURL(cfg),
			Scope:        cfg.Auth.OIDC.Scope,
			IssuerURL:    cfg.Auth.OIDC.IssuerURL,
			TenantClaim:  cfg.Auth.OIDC.TenantClaim,
		})

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// CallbackURL derives the OAuth callback URL from the application base URL.
func CallbackURL(cfg *config.AppConfig) string {
	return strings.TrimSuffix(cfg.HTTP.BaseURL, "/") + "/auth/callback"
}
