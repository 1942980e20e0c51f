package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
)

// RouterServices groups everything NewRouter needs.
type RouterServices struct {
	Auth   AuthServiceInterface
	Login  *AuthHandlers
	Alerts *AlertHandlers
	Stream *StreamHandlers
	Health *HealthHandlers
	Logger *slog.Logger
}

// NewRouter builds the full route table with logging, panic recovery, and
// per-route authentication. Transitions and alert creation require the
// operator role; the feed and the stream are open to viewers.
func NewRouter(svcs RouterServices) http.Handler {
	mux := http.NewServeMux()

	requireAuth := RequireAuth(svcs.Auth)
	operator := func(h http.HandlerFunc) http.Handler {
		return requireAuth(RequireRole(domainauth.RoleOperator)(h))
	}
	viewer := func(h http.HandlerFunc) http.Handler {
		return requireAuth(RequireRole(domainauth.RoleViewer)(h))
	}

	mux.HandleFunc("GET /healthz", svcs.Health.Health)

	mux.HandleFunc("GET /auth/login", svcs.Login.Login)
	mux.HandleFunc("GET /auth/callback", svcs.Login.Callback)
	mux.HandleFunc("POST /auth/logout", svcs.Login.Logout)
	mux.Handle("GET /api/me", requireAuth(http.HandlerFunc(svcs.Login.Me)))

	mux.Handle("GET /api/alerts", viewer(svcs.Alerts.List))
	mux.Handle("POST /api/alerts", operator(svcs.Alerts.Create))
	mux.Handle("GET /api/alerts/stream", viewer(svcs.Stream.Stream))
	mux.Handle("GET /api/alerts/{id}", viewer(svcs.Alerts.Get))
	mux.Handle("POST /api/alerts/{id}/dismiss", operator(svcs.Alerts.Dismiss))
	mux.Handle("POST /api/alerts/{id}/acknowledge", operator(svcs.Alerts.Acknowledge))
	mux.Handle("POST /api/alerts/{id}/reopen", operator(svcs.Alerts.Reopen))

	logger := svcs.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return Recover(logger)(Logging(logger)(mux))
}
