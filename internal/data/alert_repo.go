package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oncallops/alertsync/internal/core"
	"github.com/oncallops/alertsync/internal/data/pgxutil"
	"github.com/oncallops/alertsync/internal/domain/model"
)

// AlertRepo provides database operations for tenant-scoped alert state.
// It is the single source of truth for alert status; all status mutations
// go through CompareAndSetStatus.
type AlertRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAlertRepo creates a new AlertRepo instance with the given database connection.
func NewAlertRepo(db *sql.DB) *AlertRepo {
	return &AlertRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// alertColumns defines the column list for Alert SELECT queries to ensure consistent field mapping.
const alertColumns = `id, tenant_id, fingerprint, title, severity, status, payload, version, last_updated, created_at`

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Create inserts a new alert for the request's tenant.
func (r *AlertRepo) Create(
	ctx context.Context,
	req *model.CreateAlertRequest,
) (*model.Alert, error) {
	if req == nil {
		return nil, errors.New("create alert request is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now()
	payload := req.Payload
	if payload == nil {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO alerts (id, tenant_id, fingerprint, title, severity, status, payload, version, last_updated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)
		RETURNING ` + alertColumns

	var alert model.Alert
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query,
			uuid.NewString(), req.TenantID, req.Fingerprint, req.Title,
			req.Severity, req.Status, payload, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		alert, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Alert])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	return &alert, nil
}

// Get retrieves a single alert scoped to the given tenant.
// Returns core.ErrAlertNotFound when no row matches.
func (r *AlertRepo) Get(ctx context.Context, tenantID, alertID string) (*model.Alert, error) {
	if tenantID == "" || alertID == "" {
		return nil, core.ErrAlertNotFound
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE tenant_id = $1 AND id = $2`

	var alert model.Alert
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, tenantID, alertID)
		if err != nil {
			return err
		}
		defer rows.Close()

		alert, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Alert])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAlertNotFound
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}

	return &alert, nil
}

// CompareAndSetStatus applies a conditional status transition.
// The UPDATE matches on (tenant_id, id, version); a concurrent transition
// changes the version and makes the match fail, which surfaces as
// core.ErrVersionConflict so callers can re-read and retry. On success the
// version is incremented and last_updated bumped in the same statement.
func (r *AlertRepo) CompareAndSetStatus(
	ctx context.Context,
	params core.CompareAndSetParams,
) (*model.Alert, error) {
	if !params.NewStatus.Valid() {
		return nil, fmt.Errorf("invalid target status %q", params.NewStatus)
	}

	query := `
		UPDATE alerts
		SET status = $1, version = version + 1, last_updated = $2
		WHERE tenant_id = $3 AND id = $4 AND version = $5
		RETURNING ` + alertColumns

	var (
		alert   model.Alert
		matched bool
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query,
			params.NewStatus, r.timeProvider.Now(),
			params.TenantID, params.AlertID, params.ExpectedVersion,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		alert, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Alert])
		if err != nil {
			return err
		}
		matched = true
		return nil
	})
	if err == nil && matched {
		return &alert, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("compare-and-set alert status: %w", err)
	}

	// Zero rows updated: distinguish a missing alert from a stale version.
	exists, err := r.exists(ctx, params.TenantID, params.AlertID)
	if err != nil {
		return nil, fmt.Errorf("compare-and-set alert status: %w", err)
	}
	if !exists {
		return nil, core.ErrAlertNotFound
	}
	return nil, core.ErrVersionConflict
}

func (r *AlertRepo) exists(ctx context.Context, tenantID, alertID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM alerts WHERE tenant_id = $1 AND id = $2)`,
		tenantID, alertID,
	).Scan(&exists)
	return exists, err
}

// List returns the tenant's alert feed, newest transitions first.
func (r *AlertRepo) List(
	ctx context.Context,
	tenantID string,
	opts *model.AlertListOptions,
) ([]*model.Alert, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID is required")
	}

	limit := defaultListLimit
	offset := 0
	var status model.AlertStatus
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			offset = opts.Offset
		}
		status = opts.Status
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status filter %q", status)
		}
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY last_updated DESC, id LIMIT %d OFFSET %d`, limit, offset)

	var alerts []*model.Alert
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		alerts, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Alert])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	return alerts, nil
}

var _ core.AlertRepository = (*AlertRepo)(nil)
