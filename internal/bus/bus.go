package bus

// Package bus implements the tenant-scoped publish/subscribe fabric that
// fans alert state changes out to live feed subscribers. Two fabrics share
// one contract: Memory for single-process deployments and tests, Redis for
// multi-replica deployments. Delivery is best-effort and transient — events
// reach subscribers attached at publish time, exactly once each, with no
// buffering for late joiners and no replay.

import (
	"context"
	"sync"

	"github.com/oncallops/alertsync/internal/domain/model"
)

// DefaultQueueSize bounds each subscriber's delivery queue. A subscriber
// that stops draining and overflows its queue is forcibly detached so it
// cannot grow unbounded memory or delay delivery to healthy subscribers.
const DefaultQueueSize = 64

// Bus is the capability set shared by all fabrics: publish to a tenant
// channel, attach a subscriber, detach via Subscription.Close.
type Bus interface {
	// Publish delivers the event to every subscriber currently attached to
	// the event's tenant channel. It never blocks on slow subscribers.
	Publish(ctx context.Context, event model.DomainEvent) error
	// Subscribe attaches a new subscriber to the tenant's channel, creating
	// the channel if this is its first subscriber.
	Subscribe(tenantID string) (*Subscription, error)
}

// Subscription is one subscriber's attachment to a tenant channel. Events
// arrive on Events in the channel's publish order; the channel is closed
// when the subscription ends, whether by Close or by a forced detach.
type Subscription struct {
	tenantID string
	events   chan model.DomainEvent
	done     chan struct{}

	detachOnce sync.Once
	termOnce   sync.Once
	detach     func()
}

func newSubscription(tenantID string, queueSize int) *Subscription {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Subscription{
		tenantID: tenantID,
		events:   make(chan model.DomainEvent, queueSize),
		done:     make(chan struct{}),
	}
}

// TenantID returns the tenant channel this subscription is attached to.
func (s *Subscription) TenantID() string { return s.tenantID }

// Events returns the delivery channel. It is closed when the subscription
// terminates; a consumer ranging over it exits cleanly on detach.
func (s *Subscription) Events() <-chan model.DomainEvent { return s.events }

// Done is closed when the subscription has fully terminated.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close detaches the subscription from its channel. Safe to call multiple
// times and safe to call concurrently with event delivery; deliveries
// already queued may still be read from Events before it closes.
func (s *Subscription) Close() {
	s.detachOnce.Do(func() {
		if s.detach != nil {
			s.detach()
		}
	})
}

// terminate seals the subscription. Fabrics call it only after the
// subscription can no longer receive sends.
func (s *Subscription) terminate() {
	s.termOnce.Do(func() {
		close(s.done)
		close(s.events)
	})
}
