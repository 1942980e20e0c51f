package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oncallops/alertsync/internal/domain/model"
	"github.com/oncallops/alertsync/internal/observability/statsd"
)

// Memory is the in-process fabric. Channels are created lazily on first
// subscription and destroyed when the last subscriber detaches.
//
// All enqueues for one publish happen under the registry lock, so every
// subscriber of a channel observes the same total order even when
// publishers race. Per-subscriber queues are bounded: a queue that
// overflows forcibly detaches that subscriber only, and the publish
// continues to the rest.
type Memory struct {
	queueSize int
	logger    *slog.Logger
	metrics   statsd.Sink

	mu       sync.Mutex
	channels map[string]map[*Subscription]struct{}
}

// MemoryOptions configures the in-process fabric. All fields are optional.
type MemoryOptions struct {
	QueueSize int
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// NewMemory constructs an in-process bus.
func NewMemory(opts MemoryOptions) *Memory {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		queueSize: queueSize,
		logger:    logger,
		metrics:   opts.Metrics,
		channels:  make(map[string]map[*Subscription]struct{}),
	}
}

// Publish fans the event out to every subscriber of the event's tenant
// channel. Publishing to a tenant with no subscribers is a no-op.
func (m *Memory) Publish(_ context.Context, event model.DomainEvent) error {
	if event.TenantID == "" {
		return errors.New("event tenant ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.channels[event.TenantID]
	if len(subs) == 0 {
		return nil
	}

	for sub := range subs {
		select {
		case sub.events <- event:
		default:
			// Queue full: this subscriber stopped draining. Detach it so it
			// cannot delay or drop delivery for the others.
			m.removeLocked(event.TenantID, sub)
			sub.terminate()
			m.logger.Warn("subscriber detached on backpressure",
				"tenant_id", event.TenantID,
				"queue_size", m.queueSize)
			if m.metrics != nil {
				m.metrics.Count("bus.subscriber_force_detach", 1, map[string]string{"fabric": "memory"})
			}
		}
	}
	if m.metrics != nil {
		m.metrics.Count("bus.publish", 1, map[string]string{"fabric": "memory"})
	}
	return nil
}

// Subscribe attaches a subscriber to the tenant's channel, creating the
// channel if absent. Creation races resolve by insert-if-absent: only one
// channel set survives per tenant.
func (m *Memory) Subscribe(tenantID string) (*Subscription, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID is required")
	}

	sub := newSubscription(tenantID, m.queueSize)
	sub.detach = func() {
		m.mu.Lock()
		m.removeLocked(tenantID, sub)
		m.mu.Unlock()
		sub.terminate()
	}

	m.mu.Lock()
	set := m.channels[tenantID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		m.channels[tenantID] = set
	}
	set[sub] = struct{}{}
	m.mu.Unlock()

	return sub, nil
}

// SubscriberCount reports how many subscribers are attached to a tenant
// channel. Used by tests and the health surface.
func (m *Memory) SubscriberCount(tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels[tenantID])
}

// removeLocked detaches a subscription and destroys the channel when its
// last subscriber leaves. Caller must hold m.mu.
func (m *Memory) removeLocked(tenantID string, sub *Subscription) {
	set := m.channels[tenantID]
	if set == nil {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(m.channels, tenantID)
	}
}

var _ Bus = (*Memory)(nil)
