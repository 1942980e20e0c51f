package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oncallops/alertsync/internal/core"
	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
)

// AlertServiceOptions groups dependencies for AlertService.
//
// Repo is required; Publisher and Logger are optional.
type AlertServiceOptions struct {
	Repo      core.AlertRepository
	Publisher EventPublisher
	Logger    *slog.Logger
}

// AlertService provides read access to the tenant alert feed and the
// ingest boundary that seeds it. The feed list is the reload path a client
// falls back to when it misses live broadcasts.
type AlertService struct {
	repo      core.AlertRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewAlertService constructs a new AlertService.
func NewAlertService(opts AlertServiceOptions) (*AlertService, error) {
	if opts.Repo == nil {
		return nil, errors.New("AlertRepository is required")
	}
	return &AlertService{
		repo:      opts.Repo,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}, nil
}

// Create ingests a new alert for the actor's tenant and broadcasts its
// first alert_update event. The tenant is forced to the actor's scope.
func (s *AlertService) Create(
	ctx context.Context,
	actor domainauth.Session,
	req *model.CreateAlertRequest,
) (*model.Alert, error) {
	if req == nil {
		return nil, apperrors.Validation("create alert request is required")
	}
	req.TenantID = actor.TenantID
	if !actor.CanOperate() {
		return nil, apperrors.Forbidden("actor role may not create alerts")
	}

	alert, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "alert created",
			"tenant_id", alert.TenantID,
			"alert_id", alert.ID,
			"severity", alert.Severity,
			"status", alert.Status)
	}

	if s.publisher != nil {
		if pubErr := s.publisher.Publish(ctx, model.NewAlertUpdateEvent(alert)); pubErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "alert create broadcast failed",
				"tenant_id", alert.TenantID,
				"alert_id", alert.ID,
				"error", pubErr)
		}
	}

	return alert, nil
}

// Get returns one alert scoped to the actor's tenant.
func (s *AlertService) Get(ctx context.Context, actor domainauth.Session, alertID string) (*model.Alert, error) {
	alert, err := s.repo.Get(ctx, actor.TenantID, alertID)
	if err != nil {
		if errors.Is(err, core.ErrAlertNotFound) {
			return nil, apperrors.NotFoundf("alert %s not found", alertID)
		}
		return nil, apperrors.MapDBError(err)
	}
	return alert, nil
}

// List returns the actor's tenant feed.
func (s *AlertService) List(
	ctx context.Context,
	actor domainauth.Session,
	opts *model.AlertListOptions,
) ([]*model.Alert, error) {
	alerts, err := s.repo.List(ctx, actor.TenantID, opts)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return alerts, nil
}
