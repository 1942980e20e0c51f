package feed

// Package feed implements the client-side view of a tenant's alert feed. A
// consumer applies live wire events as they arrive and reconciles against a
// full feed reload whenever it may have missed broadcasts (reconnect, tab
// wake, bus-forced detach). Versions make both paths order-insensitive: the
// highest version per alert always wins, so a stale event or an older
// snapshot row can never roll a newer state back.

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/oncallops/alertsync/internal/domain/model"
)

// Reconciler maintains an eventually consistent alert map for one tenant
// feed. Safe for concurrent use.
type Reconciler struct {
	mu     sync.RWMutex
	alerts map[string]*model.Alert
}

// NewReconciler constructs an empty Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{alerts: make(map[string]*model.Alert)}
}

// ApplyEvent merges one wire event into the local view. It returns true when
// the event changed the view. Unknown event types and frames that do not
// decode are ignored so protocol growth never breaks an old consumer; stale
// versions are ignored so late deliveries cannot regress state.
func (r *Reconciler) ApplyEvent(raw []byte) bool {
	var event model.WireEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return false
	}
	if event.Event != model.EventTypeAlertUpdate {
		return false
	}
	if event.ID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.alerts[event.ID]
	if exists && current.Version >= event.Version {
		return false
	}

	if event.Alert != nil {
		cp := *event.Alert
		r.alerts[event.ID] = &cp
		return true
	}

	// Sparse event: only id, status, and version. Patch in place when the
	// alert is known, otherwise record a placeholder the next snapshot fills.
	if exists {
		cp := *current
		cp.Status = event.Status
		cp.Version = event.Version
		r.alerts[event.ID] = &cp
		return true
	}
	r.alerts[event.ID] = &model.Alert{
		ID:      event.ID,
		Status:  event.Status,
		Version: event.Version,
	}
	return true
}

// ApplySnapshot reconciles the view against a full feed reload. Snapshot
// rows replace local state only when their version is at least as new;
// alerts absent from the snapshot are dropped, since the server no longer
// lists them.
func (r *Reconciler) ApplySnapshot(alerts []*model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*model.Alert, len(alerts))
	for _, alert := range alerts {
		if alert == nil || alert.ID == "" {
			continue
		}
		cp := *alert
		if current, ok := r.alerts[alert.ID]; ok && current.Version > alert.Version {
			// A live event already advanced past this snapshot row.
			cp = *current
		}
		next[cp.ID] = &cp
	}
	r.alerts = next
}

// Get returns the current view of one alert.
func (r *Reconciler) Get(alertID string) (*model.Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.alerts[alertID]
	if !ok {
		return nil, false
	}
	cp := *alert
	return &cp, true
}

// Snapshot returns the full view ordered by alert ID.
func (r *Reconciler) Snapshot() []*model.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Alert, 0, len(r.alerts))
	for _, alert := range r.alerts {
		cp := *alert
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of alerts in the view.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}
