//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Alert represents a single alert record owned by a tenant.
// Status is mutated exclusively through compare-and-set transitions;
// Version increases by one on every successful transition.
type Alert struct {
	ID          string          `json:"id"                    db:"id"`
	TenantID    string          `json:"tenant_id"             db:"tenant_id"`
	Fingerprint string          `json:"fingerprint,omitempty" db:"fingerprint"`
	Title       string          `json:"title"                 db:"title"`
	Severity    AlertSeverity   `json:"severity"              db:"severity"`
	Status      AlertStatus     `json:"status"                db:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"     db:"payload"`
	Version     int64           `json:"version"               db:"version"`
	LastUpdated time.Time       `json:"last_updated"          db:"last_updated"`
	CreatedAt   time.Time       `json:"created_at"            db:"created_at"`
}

// AlertStatus represents the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusDismissed    AlertStatus = "dismissed"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusError        AlertStatus = "error"
)

// Valid returns true if the alert status is one of the supported values.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusOpen, AlertStatusAcknowledged, AlertStatusDismissed, AlertStatusResolved, AlertStatusError:
		return true
	default:
		return false
	}
}

// Terminal returns true when the status accepts no further automated
// transitions. Terminal alerts can only be changed by an explicit re-open.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusDismissed || s == AlertStatusResolved
}

// String returns the string representation of the alert status.
func (s AlertStatus) String() string {
	return string(s)
}

// AlertSeverity represents the severity level of an alert.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityInfo     AlertSeverity = "info"
)

// Valid returns true if the alert severity is valid.
func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertSeverityCritical, AlertSeverityHigh, AlertSeverityMedium, AlertSeverityLow, AlertSeverityInfo:
		return true
	default:
		return false
	}
}

// String returns the string representation of the alert severity.
func (s AlertSeverity) String() string {
	return string(s)
}

const maxAlertTitleLength = 512

// CreateAlertRequest represents a request to create a new alert.
type CreateAlertRequest struct {
	TenantID    string          `json:"tenant_id"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Title       string          `json:"title"`
	Severity    AlertSeverity   `json:"severity,omitempty"`
	Status      AlertStatus     `json:"status,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Normalize trims whitespace and applies defaults for optional fields.
func (r *CreateAlertRequest) Normalize() {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.Fingerprint = strings.TrimSpace(r.Fingerprint)
	r.Title = strings.TrimSpace(r.Title)
	r.Severity = AlertSeverity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
	r.Status = AlertStatus(strings.ToLower(strings.TrimSpace(string(r.Status))))
	if r.Severity == "" {
		r.Severity = AlertSeverityInfo
	}
	if r.Status == "" {
		r.Status = AlertStatusOpen
	}
}

// Validate checks that the request contains acceptable values.
func (r *CreateAlertRequest) Validate() error {
	if r.TenantID == "" {
		return errors.New("tenant_id is required")
	}
	if r.Title == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(r.Title) > maxAlertTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if !r.Severity.Valid() {
		return errors.New("invalid severity")
	}
	if !r.Status.Valid() {
		return errors.New("invalid status")
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	return nil
}

// AlertListOptions controls filtering and pagination for alert feed queries.
type AlertListOptions struct {
	Status AlertStatus
	Limit  int
	Offset int
}
