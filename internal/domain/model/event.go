package model

import (
	"encoding/json"
	"time"
)

// EventTypeAlertUpdate is the discriminator carried by every alert state
// change broadcast to live feed subscribers. The field is extensible:
// consumers must ignore event types they do not recognize.
const EventTypeAlertUpdate = "alert_update"

// DomainEvent is the notification emitted after a successful alert
// transition. It is immutable and transient: the bus delivers it to
// currently attached subscribers and never persists it.
type DomainEvent struct {
	TenantID  string      `json:"tenant_id"`
	EventType string      `json:"event"`
	AlertID   string      `json:"id"`
	Status    AlertStatus `json:"status"`
	Version   int64       `json:"version"`
	Alert     *Alert      `json:"alert,omitempty"`
	EmittedAt time.Time   `json:"emitted_at"`
}

// NewAlertUpdateEvent builds the alert_update event for a post-transition
// alert snapshot. Version is copied from the alert at emission time.
func NewAlertUpdateEvent(alert *Alert) DomainEvent {
	return DomainEvent{
		TenantID:  alert.TenantID,
		EventType: EventTypeAlertUpdate,
		AlertID:   alert.ID,
		Status:    alert.Status,
		Version:   alert.Version,
		Alert:     alert,
		EmittedAt: time.Now().UTC(),
	}
}

// WireEvent is the external representation delivered to feed subscribers.
// It never exposes the tenant ID: subscribers are already scoped to a
// single tenant by their connection.
type WireEvent struct {
	Event   string      `json:"event"`
	ID      string      `json:"id"`
	Status  AlertStatus `json:"status"`
	Version int64       `json:"version"`
	Alert   *Alert      `json:"alert,omitempty"`
}

// Wire converts the domain event into its wire shape. The conversion is
// lossless for the alert ID and status.
func (e DomainEvent) Wire() WireEvent {
	return WireEvent{
		Event:   e.EventType,
		ID:      e.AlertID,
		Status:  e.Status,
		Version: e.Version,
		Alert:   e.Alert,
	}
}

// MarshalWire serializes the event's wire shape to JSON.
func (e DomainEvent) MarshalWire() ([]byte, error) {
	return json.Marshal(e.Wire())
}
