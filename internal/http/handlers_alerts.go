package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
	"github.com/oncallops/alertsync/internal/service"
)

// TransitionServiceInterface is the slice of the transition service the HTTP
// layer needs.
type TransitionServiceInterface interface {
	Dismiss(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	Acknowledge(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	Reopen(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
}

// AlertServiceInterface is the slice of the alert service the HTTP layer needs.
type AlertServiceInterface interface {
	Create(ctx context.Context, actor domainauth.Session, req *model.CreateAlertRequest) (*model.Alert, error)
	Get(ctx context.Context, actor domainauth.Session, alertID string) (*model.Alert, error)
	List(ctx context.Context, actor domainauth.Session, opts *model.AlertListOptions) ([]*model.Alert, error)
}

// AlertHandlersOptions groups dependencies for AlertHandlers.
type AlertHandlersOptions struct {
	Alerts      AlertServiceInterface
	Transitions TransitionServiceInterface
	Logger      *slog.Logger
}

// AlertHandlers serves the alert feed and transition endpoints. The tenant
// scope always comes from the authenticated session, never from the request.
type AlertHandlers struct {
	alerts      AlertServiceInterface
	transitions TransitionServiceInterface
	logger      *slog.Logger
}

// NewAlertHandlers constructs AlertHandlers.
func NewAlertHandlers(opts AlertHandlersOptions) (*AlertHandlers, error) {
	if opts.Alerts == nil {
		return nil, errors.New("AlertServiceInterface is required")
	}
	if opts.Transitions == nil {
		return nil, errors.New("TransitionServiceInterface is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandlers{
		alerts:      opts.Alerts,
		transitions: opts.Transitions,
		logger:      logger,
	}, nil
}

// Dismiss handles POST /api/alerts/{id}/dismiss.
func (h *AlertHandlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, h.transitions.Dismiss)
}

// Acknowledge handles POST /api/alerts/{id}/acknowledge.
func (h *AlertHandlers) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, h.transitions.Acknowledge)
}

// Reopen handles POST /api/alerts/{id}/reopen.
func (h *AlertHandlers) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, h.transitions.Reopen)
}

func (h *AlertHandlers) transitionHandler(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, service.TransitionRequest) (*service.TransitionResult, error),
) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	result, err := apply(r.Context(), service.TransitionRequest{
		TenantID: sess.TenantID,
		AlertID:  r.PathValue("id"),
		Actor:    *sess,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// Create handles POST /api/alerts.
func (h *AlertHandlers) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	var req model.CreateAlertRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		WriteAppError(w, apperrors.Validation(err.Error()))
		return
	}

	alert, err := h.alerts.Create(r.Context(), *sess, &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, alert)
}

// Get handles GET /api/alerts/{id}.
func (h *AlertHandlers) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	alert, err := h.alerts.Get(r.Context(), *sess, r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, alert)
}

// List handles GET /api/alerts. This is the reconciliation path: a client
// that missed live events reloads the feed from here and merges by version.
func (h *AlertHandlers) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	alerts, err := h.alerts.List(r.Context(), *sess, opts)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func listOptionsFromQuery(r *http.Request) (*model.AlertListOptions, error) {
	opts := &model.AlertListOptions{}
	q := r.URL.Query()

	if status := q.Get("status"); status != "" {
		parsed := model.AlertStatus(status)
		if !parsed.Valid() {
			return nil, apperrors.ValidationField("status", "unknown alert status")
		}
		opts.Status = parsed
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, apperrors.ValidationField("limit", "limit must be a non-negative integer")
		}
		opts.Limit = n
	}

	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return nil, apperrors.ValidationField("offset", "offset must be a non-negative integer")
		}
		opts.Offset = n
	}

	return opts, nil
}
