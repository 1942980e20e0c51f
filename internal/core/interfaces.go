package core

import (
	"context"
	"errors"

	"github.com/oncallops/alertsync/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations should depend on these interfaces, not concrete implementations.

// ErrAlertNotFound is returned when an alert does not exist for the tenant.
var ErrAlertNotFound = errors.New("alert not found")

// ErrVersionConflict is returned by CompareAndSetStatus when the stored
// version no longer matches the expected version. Callers re-read and retry.
var ErrVersionConflict = errors.New("alert version conflict")

// CompareAndSetParams groups parameters for AlertRepository.CompareAndSetStatus.
type CompareAndSetParams struct {
	TenantID        string
	AlertID         string
	ExpectedVersion int64
	NewStatus       model.AlertStatus
}

// AlertRepository defines the interface for alert data operations.
//
// CompareAndSetStatus is the sole serialization point per (tenant, alert)
// pair: it succeeds only when the stored version matches ExpectedVersion,
// and on success increments the version and bumps last_updated. The store
// never emits events; notification is the transition service's concern so
// persistence and delivery stay independently testable.
type AlertRepository interface {
	Create(ctx context.Context, req *model.CreateAlertRequest) (*model.Alert, error)
	Get(ctx context.Context, tenantID, alertID string) (*model.Alert, error)
	CompareAndSetStatus(ctx context.Context, params CompareAndSetParams) (*model.Alert, error)
	List(ctx context.Context, tenantID string, opts *model.AlertListOptions) ([]*model.Alert, error)
}
