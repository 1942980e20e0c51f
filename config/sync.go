package config

import (
	"fmt"
	"strings"
	"time"
)

// BusMode selects the event bus fabric.
type BusMode string

const (
	// BusModeMemory runs the in-process fabric. Single replica only.
	BusModeMemory BusMode = "memory"
	// BusModeRedis runs the Redis Pub/Sub fabric for multi-replica deployments.
	BusModeRedis BusMode = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for BusMode.
func (b *BusMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "memory", "redis":
		*b = BusMode(v)
		return nil
	default:
		return fmt.Errorf("invalid BusMode: %q (valid options: memory, redis)", v)
	}
}

// SyncConfig tunes the alert synchronization core.
type SyncConfig struct {
	// Bus selects the event fabric.
	Bus BusMode `env:"BUS" envDefault:"memory"`

	// DismissRetries bounds the compare-and-set retry loop for transitions.
	DismissRetries int `env:"DISMISS_RETRIES" envDefault:"3"`

	// PublishTimeout bounds how long a transition waits on the bus before
	// degrading to log-only.
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"2s"`

	// SubscriberQueue is the per-subscriber delivery queue depth. A
	// subscriber that overflows it is forcibly detached.
	SubscriberQueue int `env:"SUBSCRIBER_QUEUE" envDefault:"64"`

	// HeartbeatInterval is how often idle SSE connections receive a
	// keep-alive comment.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`

	// ChannelPrefix namespaces the Redis Pub/Sub channels when Bus=redis.
	ChannelPrefix string `env:"CHANNEL_PREFIX" envDefault:"alerts.events."`
}

// Sanitize applies guardrails to sync configuration values.
func (c *SyncConfig) Sanitize() {
	if c.DismissRetries <= 0 {
		c.DismissRetries = 3
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.SubscriberQueue <= 0 {
		c.SubscriberQueue = 64
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "alerts.events."
	}
}
