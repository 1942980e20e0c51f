package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oncallops/alertsync/internal/core"
	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
	"github.com/oncallops/alertsync/internal/observability/statsd"
)

// EventPublisher is the capability the transition service needs from the
// event bus. Kept minimal so tests can substitute a fake fabric.
type EventPublisher interface {
	Publish(ctx context.Context, event model.DomainEvent) error
}

// DefaultMaxAttempts bounds the read/compare-and-set retry loop. Exceeding
// it is treated as a genuine conflict rather than retried indefinitely.
const DefaultMaxAttempts = 3

// defaultPublishTimeout bounds how long a transition waits on the bus.
// A slow or disconnected bus degrades notification, never persistence.
const defaultPublishTimeout = 2 * time.Second

// TransitionServiceOptions groups dependencies for TransitionService.
//
// Repo is required. Publisher is optional but expected in production;
// without it transitions persist silently.
type TransitionServiceOptions struct {
	Repo           core.AlertRepository
	Publisher      EventPublisher
	Logger         *slog.Logger
	Metrics        statsd.Sink
	MaxAttempts    int
	PublishTimeout time.Duration
}

// TransitionService applies alert lifecycle transitions (dismiss,
// acknowledge, re-open) and broadcasts exactly one event per successful
// transition.
//
// The repository's compare-and-set is the sole serialization point per
// (tenant, alert): two racing operators cannot both transition the same
// alert, and an idempotent repeat returns success without a second event.
type TransitionService struct {
	repo           core.AlertRepository
	publisher      EventPublisher
	logger         *slog.Logger
	metrics        statsd.Sink
	maxAttempts    int
	publishTimeout time.Duration
}

// NewTransitionService constructs a new TransitionService.
func NewTransitionService(opts TransitionServiceOptions) (*TransitionService, error) {
	if opts.Repo == nil {
		return nil, errors.New("AlertRepository is required")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	publishTimeout := opts.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &TransitionService{
		repo:           opts.Repo,
		publisher:      opts.Publisher,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		maxAttempts:    maxAttempts,
		publishTimeout: publishTimeout,
	}, nil
}

// TransitionRequest identifies the alert and the actor applying a transition.
type TransitionRequest struct {
	TenantID string
	AlertID  string
	Actor    domainauth.Session
}

// TransitionResult reports the outcome of a transition.
type TransitionResult struct {
	Success bool         `json:"success"`
	AlertID string       `json:"id"`
	Changed bool         `json:"-"`
	Alert   *model.Alert `json:"-"`
}

// Dismiss marks an alert as acknowledged-closed by an operator. Dismiss is
// idempotent: repeating it on an already-dismissed alert succeeds without
// a new transition or event.
func (s *TransitionService) Dismiss(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return s.transition(ctx, req, model.AlertStatusDismissed)
}

// Acknowledge marks an alert as seen by an operator. Terminal alerts are
// rejected with Conflict.
func (s *TransitionService) Acknowledge(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return s.transition(ctx, req, model.AlertStatusAcknowledged)
}

// Reopen returns a terminal alert to the open state. It is the only
// permitted exit from dismissed and resolved.
func (s *TransitionService) Reopen(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return s.transition(ctx, req, model.AlertStatusOpen)
}

func (s *TransitionService) transition(
	ctx context.Context,
	req TransitionRequest,
	target model.AlertStatus,
) (*TransitionResult, error) {
	if req.AlertID == "" {
		return nil, apperrors.Validation("alert ID is required")
	}
	if err := s.authorize(ctx, req); err != nil {
		return nil, err
	}

	start := time.Now()
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		alert, err := s.repo.Get(ctx, req.TenantID, req.AlertID)
		if err != nil {
			if errors.Is(err, core.ErrAlertNotFound) {
				return nil, apperrors.NotFoundf("alert %s not found", req.AlertID)
			}
			return nil, apperrors.MapDBError(err)
		}

		// Idempotent repeat: same terminal outcome, no new transition, no event.
		if alert.Status == target {
			return &TransitionResult{Success: true, AlertID: alert.ID, Alert: alert}, nil
		}

		if err := checkTransition(alert.Status, target); err != nil {
			return nil, err
		}

		updated, err := s.repo.CompareAndSetStatus(ctx, core.CompareAndSetParams{
			TenantID:        req.TenantID,
			AlertID:         req.AlertID,
			ExpectedVersion: alert.Version,
			NewStatus:       target,
		})
		if errors.Is(err, core.ErrVersionConflict) {
			// Benign race with a concurrent transition; re-read and retry.
			if s.metrics != nil {
				s.metrics.Count("transition.cas_retry", 1, map[string]string{"target": target.String()})
			}
			continue
		}
		if errors.Is(err, core.ErrAlertNotFound) {
			return nil, apperrors.NotFoundf("alert %s not found", req.AlertID)
		}
		if err != nil {
			return nil, apperrors.MapDBError(err)
		}

		if s.logger != nil {
			s.logger.InfoContext(ctx, "alert transition applied",
				"tenant_id", updated.TenantID,
				"alert_id", updated.ID,
				"status", updated.Status,
				"version", updated.Version,
				"actor", req.Actor.UserID)
		}
		if s.metrics != nil {
			s.metrics.Timing("transition.apply", time.Since(start), map[string]string{"target": target.String()})
		}

		// The event is offered to the bus before success returns to the
		// caller, but on its own failure domain: a broken bus is logged,
		// never rolled back into the persisted transition.
		s.publishUpdate(ctx, updated)

		return &TransitionResult{Success: true, AlertID: updated.ID, Changed: true, Alert: updated}, nil
	}

	return nil, apperrors.Conflictf("alert %s is changing concurrently, retry later", req.AlertID)
}

// authorize verifies the actor's tenant scope. The HTTP layer already
// derives the tenant from the authenticated session, so a mismatch here
// means a caller tried to reach across tenants.
func (s *TransitionService) authorize(ctx context.Context, req TransitionRequest) error {
	if req.TenantID == "" {
		return apperrors.Validation("tenant ID is required")
	}
	if !req.Actor.ScopedTo(req.TenantID) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "cross-tenant transition rejected",
				"tenant_id", req.TenantID,
				"actor_tenant_id", req.Actor.TenantID,
				"actor", req.Actor.UserID)
		}
		return apperrors.Forbidden("actor is not scoped to this tenant")
	}
	if !req.Actor.CanOperate() {
		return apperrors.Forbidden("actor role may not apply transitions")
	}
	return nil
}

func (s *TransitionService) publishUpdate(ctx context.Context, alert *model.Alert) {
	if s.publisher == nil {
		return
	}

	// Detach from the request's cancellation but keep a bound of our own:
	// a stalled bus must not hold the dismiss response hostage.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	event := model.NewAlertUpdateEvent(alert)
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "alert update broadcast failed",
				"tenant_id", alert.TenantID,
				"alert_id", alert.ID,
				"version", alert.Version,
				"error", err)
		}
		if s.metrics != nil {
			s.metrics.Count("transition.publish_failure", 1, nil)
		}
	}
}

// checkTransition enforces the lifecycle partial order: dismissed and
// resolved are terminal, reachable-from anywhere non-terminal, and exited
// only via re-open.
func checkTransition(from, to model.AlertStatus) error {
	switch to {
	case model.AlertStatusDismissed:
		if from.Terminal() {
			return apperrors.Conflictf("alert is already %s", from)
		}
		return nil
	case model.AlertStatusAcknowledged:
		if from.Terminal() {
			return apperrors.Conflictf("cannot acknowledge a %s alert", from)
		}
		return nil
	case model.AlertStatusOpen:
		if !from.Terminal() {
			return apperrors.Conflictf("cannot re-open a %s alert", from)
		}
		return nil
	default:
		return apperrors.Validation(fmt.Sprintf("unsupported target status %q", to))
	}
}
