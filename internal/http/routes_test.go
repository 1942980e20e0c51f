package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/domain/model"
	"github.com/oncallops/alertsync/internal/service"
)

func newTestRouter(t *testing.T, authSvc *stubAuthService) http.Handler {
	t.Helper()

	login, err := NewAuthHandlers(AuthHandlersOptions{
		Auth:        authSvc,
		Logger:      discardLogger(),
		CallbackURL: "http://localhost:8080/auth/callback",
	})
	require.NoError(t, err)

	alerts, err := NewAlertHandlers(AlertHandlersOptions{
		Alerts: &stubAlerts{alert: &model.Alert{ID: "a-1"}},
		Transitions: &stubTransitions{
			result: &service.TransitionResult{Success: true, AlertID: "a-1"},
		},
	})
	require.NoError(t, err)

	stream := newStreamHandlers(t, failingBus{}, nil)

	return NewRouter(RouterServices{
		Auth:   authSvc,
		Login:  login,
		Alerts: alerts,
		Stream: stream,
		Health: NewHealthHandlers(nil, discardLogger()),
		Logger: discardLogger(),
	})
}

func routerDo(router http.Handler, method, target, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthzIsOpen(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &stubAuthService{sessions: map[string]*domainauth.Session{}})
	rec := routerDo(router, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &stubAuthService{sessions: map[string]*domainauth.Session{}})

	for _, target := range []string{"/api/alerts", "/api/alerts/a-1", "/api/me"} {
		rec := routerDo(router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	rec := routerDo(router, http.MethodPost, "/api/alerts/a-1/dismiss", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RoleEnforcement(t *testing.T) {
	t.Parallel()

	viewer := testSession(domainauth.RoleViewer)
	viewer.ID = "sess-viewer"
	operator := testSession(domainauth.RoleOperator)
	operator.ID = "sess-operator"

	router := newTestRouter(t, &stubAuthService{sessions: map[string]*domainauth.Session{
		"sess-viewer":   viewer,
		"sess-operator": operator,
	}})

	// Viewers can read the feed but not transition alerts.
	assert.Equal(t, http.StatusOK, routerDo(router, http.MethodGet, "/api/alerts", "sess-viewer").Code)
	assert.Equal(t, http.StatusForbidden, routerDo(router, http.MethodPost, "/api/alerts/a-1/dismiss", "sess-viewer").Code)
	assert.Equal(t, http.StatusForbidden, routerDo(router, http.MethodPost, "/api/alerts", "sess-viewer").Code)

	assert.Equal(t, http.StatusOK, routerDo(router, http.MethodPost, "/api/alerts/a-1/dismiss", "sess-operator").Code)
	assert.Equal(t, http.StatusOK, routerDo(router, http.MethodPost, "/api/alerts/a-1/acknowledge", "sess-operator").Code)
	assert.Equal(t, http.StatusOK, routerDo(router, http.MethodPost, "/api/alerts/a-1/reopen", "sess-operator").Code)
}

func TestRouter_StreamRouteWinsOverAlertID(t *testing.T) {
	t.Parallel()

	viewer := testSession(domainauth.RoleViewer)
	router := newTestRouter(t, &stubAuthService{sessions: map[string]*domainauth.Session{
		"sess-1": viewer,
	}})

	// The stream handler is backed by a failing bus here, so hitting 503
	// proves the literal route matched instead of GET /api/alerts/{id}.
	rec := routerDo(router, http.MethodGet, "/api/alerts/stream", "sess-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &stubAuthService{sessions: map[string]*domainauth.Session{}})
	rec := routerDo(router, http.MethodGet, "/api/unknown", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
