package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/oncallops/alertsync/internal/domain/model"
	"github.com/oncallops/alertsync/internal/observability/statsd"
)

// DefaultChannelPrefix namespaces the per-tenant Pub/Sub channels.
const DefaultChannelPrefix = "alerts.events."

// Redis is the cross-process fabric backed by Redis Pub/Sub. Each tenant
// maps to one Pub/Sub channel; Redis preserves publish order per channel,
// so all subscribers of a tenant observe a single total order. Pub/Sub has
// no persistence or replay, which matches the delivery contract exactly:
// only currently attached subscribers receive an event.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	queueSize int
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RedisOptions configures the Redis fabric. Client is required.
type RedisOptions struct {
	Client        redis.UniversalClient
	ChannelPrefix string
	QueueSize     int
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// NewRedis constructs a Redis-backed bus.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.ChannelPrefix
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:    opts.Client,
		prefix:    prefix,
		queueSize: queueSize,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// ChannelName returns the Pub/Sub channel for a tenant. Tenant IDs are
// trusted input here; scoping is enforced at the subscription gateway.
func (b *Redis) ChannelName(tenantID string) string {
	return b.prefix + tenantID
}

// TenantFromChannel is the inverse of ChannelName.
func (b *Redis) TenantFromChannel(channel string) string {
	return strings.TrimPrefix(channel, b.prefix)
}

// Publish marshals the event and publishes it to the tenant's channel.
func (b *Redis) Publish(ctx context.Context, event model.DomainEvent) error {
	if event.TenantID == "" {
		return errors.New("event tenant ID is required")
	}

	payload, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.ChannelName(event.TenantID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if b.metrics != nil {
		b.metrics.Count("bus.publish", 1, map[string]string{"fabric": "redis"})
	}
	return nil
}

// Subscribe opens a dedicated Pub/Sub connection for the tenant channel and
// bridges it into the shared Subscription surface, applying the same
// bounded-queue backpressure policy as the in-process fabric.
func (b *Redis) Subscribe(tenantID string) (*Subscription, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID is required")
	}

	pubsub := b.client.Subscribe(context.Background(), b.ChannelName(tenantID))

	sub := newSubscription(tenantID, b.queueSize)
	sub.detach = func() {
		// Closing the Pub/Sub connection ends the read loop, which seals
		// the subscription.
		if err := pubsub.Close(); err != nil {
			b.logger.Debug("close pubsub", "tenant_id", tenantID, "error", err)
		}
	}

	go b.readLoop(pubsub, sub)

	return sub, nil
}

func (b *Redis) readLoop(pubsub *redis.PubSub, sub *Subscription) {
	defer sub.terminate()

	for msg := range pubsub.Channel() {
		event, err := unmarshalEvent([]byte(msg.Payload))
		if err != nil {
			b.logger.Warn("drop undecodable bus event",
				"tenant_id", sub.TenantID(),
				"error", err)
			continue
		}

		select {
		case sub.events <- event:
		default:
			b.logger.Warn("subscriber detached on backpressure",
				"tenant_id", sub.TenantID(),
				"queue_size", b.queueSize)
			if b.metrics != nil {
				b.metrics.Count("bus.subscriber_force_detach", 1, map[string]string{"fabric": "redis"})
			}
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("close pubsub", "tenant_id", sub.TenantID(), "error", err)
			}
			return
		}
	}
}

// marshalEvent encodes the full domain event, tenant ID included, so the
// receiving side can rebuild it without knowing the channel name.
func marshalEvent(event model.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// unmarshalEvent decodes a bus payload. Unknown fields are ignored for
// forward compatibility; unknown event types are passed through and left
// to the consumer to ignore.
func unmarshalEvent(payload []byte) (model.DomainEvent, error) {
	var event model.DomainEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return model.DomainEvent{}, err
	}
	if event.EventType == "" {
		return model.DomainEvent{}, errors.New("missing event type")
	}
	return event, nil
}

var _ Bus = (*Redis)(nil)
