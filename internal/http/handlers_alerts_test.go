package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
	"github.com/oncallops/alertsync/internal/service"
)

// stubAuthService backs RequireAuth and the auth handlers in tests.
type stubAuthService struct {
	sessions map[string]*domainauth.Session

	beginResult *service.BeginLoginResult
	beginErr    error

	completeSession *domainauth.Session
	completeErr     error

	loggedOut []string
}

func (s *stubAuthService) BeginLogin(_ context.Context, _ string) (*service.BeginLoginResult, error) {
	return s.beginResult, s.beginErr
}

func (s *stubAuthService) CompleteLogin(_ context.Context, _ service.CompleteLoginInput) (*domainauth.Session, error) {
	return s.completeSession, s.completeErr
}

func (s *stubAuthService) GetSession(_ context.Context, sessionID string) (*domainauth.Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.New("session not found")
	}
	return sess, nil
}

func (s *stubAuthService) Logout(_ context.Context, sessionID string) error {
	s.loggedOut = append(s.loggedOut, sessionID)
	return nil
}

var _ AuthServiceInterface = (*stubAuthService)(nil)

// stubTransitions records transition calls and returns canned results.
type stubTransitions struct {
	lastReq service.TransitionRequest
	result  *service.TransitionResult
	err     error
}

func (s *stubTransitions) apply(req service.TransitionRequest) (*service.TransitionResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *stubTransitions) Dismiss(_ context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
	return s.apply(req)
}

func (s *stubTransitions) Acknowledge(_ context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
	return s.apply(req)
}

func (s *stubTransitions) Reopen(_ context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
	return s.apply(req)
}

// stubAlerts returns canned alert feed data.
type stubAlerts struct {
	alert    *model.Alert
	alerts   []*model.Alert
	lastOpts *model.AlertListOptions
	err      error
}

func (s *stubAlerts) Create(_ context.Context, _ domainauth.Session, _ *model.CreateAlertRequest) (*model.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.alert, nil
}

func (s *stubAlerts) Get(_ context.Context, _ domainauth.Session, _ string) (*model.Alert, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.alert, nil
}

func (s *stubAlerts) List(_ context.Context, _ domainauth.Session, opts *model.AlertListOptions) ([]*model.Alert, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.alerts, nil
}

func testSession(role domainauth.Role) *domainauth.Session {
	return &domainauth.Session{
		ID:        "sess-1",
		UserID:    "op-1",
		TenantID:  "tenant-a",
		Email:     "op@example.com",
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newAlertHandlers(t *testing.T, transitions TransitionServiceInterface, alerts AlertServiceInterface) *AlertHandlers {
	t.Helper()
	h, err := NewAlertHandlers(AlertHandlersOptions{Alerts: alerts, Transitions: transitions})
	require.NoError(t, err)
	return h
}

// doWithSession runs the handler with the session preloaded in context and
// the {id} path value bound, the way the router would.
func doWithSession(
	handler http.HandlerFunc,
	sess *domainauth.Session,
	method, target, alertID string,
	body string,
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if alertID != "" {
		req.SetPathValue("id", alertID)
	}
	if sess != nil {
		req = req.WithContext(SetSessionInContext(req.Context(), sess))
	}

	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAlertHandlers_Dismiss_Success(t *testing.T) {
	t.Parallel()

	transitions := &stubTransitions{
		result: &service.TransitionResult{Success: true, AlertID: "alert-1", Changed: true},
	}
	h := newAlertHandlers(t, transitions, &stubAlerts{})

	rec := doWithSession(h.Dismiss, testSession(domainauth.RoleOperator),
		http.MethodPost, "/api/alerts/alert-1/dismiss", "alert-1", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "alert-1", resp.ID)

	// The tenant must come from the session, never the request.
	assert.Equal(t, "tenant-a", transitions.lastReq.TenantID)
	assert.Equal(t, "alert-1", transitions.lastReq.AlertID)
	assert.Equal(t, "op-1", transitions.lastReq.Actor.UserID)
}

func TestAlertHandlers_Dismiss_RequiresSession(t *testing.T) {
	t.Parallel()
	h := newAlertHandlers(t, &stubTransitions{}, &stubAlerts{})

	rec := doWithSession(h.Dismiss, nil, http.MethodPost, "/api/alerts/alert-1/dismiss", "alert-1", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlertHandlers_Dismiss_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperrors.NotFound("gone"), http.StatusNotFound},
		{"conflict", apperrors.Conflict("version moved"), http.StatusConflict},
		{"forbidden", apperrors.Forbidden("wrong tenant"), http.StatusForbidden},
		{"validation", apperrors.Validation("bad id"), http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newAlertHandlers(t, &stubTransitions{err: tc.err}, &stubAlerts{})

			rec := doWithSession(h.Dismiss, testSession(domainauth.RoleOperator),
				http.MethodPost, "/api/alerts/alert-1/dismiss", "alert-1", "")

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAlertHandlers_InternalErrorHidesDetails(t *testing.T) {
	t.Parallel()
	h := newAlertHandlers(t, &stubTransitions{err: errors.New("pq: secret dsn")}, &stubAlerts{})

	rec := doWithSession(h.Dismiss, testSession(domainauth.RoleOperator),
		http.MethodPost, "/api/alerts/alert-1/dismiss", "alert-1", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret dsn")
}

func TestAlertHandlers_List(t *testing.T) {
	t.Parallel()

	alerts := &stubAlerts{alerts: []*model.Alert{
		{ID: "a-1", TenantID: "tenant-a", Status: model.AlertStatusOpen, Version: 1},
	}}
	h := newAlertHandlers(t, &stubTransitions{}, alerts)

	rec := doWithSession(h.List, testSession(domainauth.RoleViewer),
		http.MethodGet, "/api/alerts?status=open&limit=10&offset=5", "", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alerts []*model.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	require.NotNil(t, alerts.lastOpts)
	assert.Equal(t, model.AlertStatusOpen, alerts.lastOpts.Status)
	assert.Equal(t, 10, alerts.lastOpts.Limit)
	assert.Equal(t, 5, alerts.lastOpts.Offset)
}

func TestAlertHandlers_List_RejectsBadQuery(t *testing.T) {
	t.Parallel()
	h := newAlertHandlers(t, &stubTransitions{}, &stubAlerts{})

	rec := doWithSession(h.List, testSession(domainauth.RoleViewer),
		http.MethodGet, "/api/alerts?status=snoozed", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doWithSession(h.List, testSession(domainauth.RoleViewer),
		http.MethodGet, "/api/alerts?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertHandlers_Create(t *testing.T) {
	t.Parallel()

	created := &model.Alert{ID: "a-1", TenantID: "tenant-a", Title: "disk almost full", Version: 1}
	h := newAlertHandlers(t, &stubTransitions{}, &stubAlerts{alert: created})

	rec := doWithSession(h.Create, testSession(domainauth.RoleOperator),
		http.MethodPost, "/api/alerts", "", `{"title":"disk almost full","severity":"high"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp model.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a-1", resp.ID)
}

func TestAlertHandlers_Create_RejectsInvalidBody(t *testing.T) {
	t.Parallel()
	h := newAlertHandlers(t, &stubTransitions{}, &stubAlerts{})

	rec := doWithSession(h.Create, testSession(domainauth.RoleOperator),
		http.MethodPost, "/api/alerts", "", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doWithSession(h.Create, testSession(domainauth.RoleOperator),
		http.MethodPost, "/api/alerts", "", `{"severity":"high"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing title")
}
