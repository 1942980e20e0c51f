package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/oncallops/alertsync/config"
	"github.com/oncallops/alertsync/internal/adapters/authroles"
	adapterredis "github.com/oncallops/alertsync/internal/adapters/redis"
	"github.com/oncallops/alertsync/internal/bus"
	"github.com/oncallops/alertsync/internal/data"
	"github.com/oncallops/alertsync/internal/observability/statsd"
	"github.com/oncallops/alertsync/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Alerts      *service.AlertService
	Transitions *service.TransitionService
	Auth        *service.AuthService
	Filters     *service.FeedFilterService
	Bus         bus.Bus
	Metrics     *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildServices wires repositories, the event bus, and services.
func BuildServices(deps ServiceDeps) (*ServiceContainer, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := buildMetrics(logger, deps.Config.Observability)

	eventBus, err := buildBus(deps, logger, metrics)
	if err != nil {
		return nil, err
	}

	alertRepo := data.NewAlertRepo(deps.DB)

	transitions, err := service.NewTransitionService(service.TransitionServiceOptions{
		Repo:           alertRepo,
		Publisher:      eventBus,
		Logger:         logger,
		Metrics:        metrics,
		MaxAttempts:    deps.Config.Sync.DismissRetries,
		PublishTimeout: deps.Config.Sync.PublishTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build transition service: %w", err)
	}

	alerts, err := service.NewAlertService(service.AlertServiceOptions{
		Repo:      alertRepo,
		Publisher: eventBus,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build alert service: %w", err)
	}

	auth, err := buildAuthService(deps, logger)
	if err != nil {
		return nil, err
	}

	return &ServiceContainer{
		Alerts:      alerts,
		Transitions: transitions,
		Auth:        auth,
		Filters:     service.NewFeedFilterService(nil),
		Bus:         eventBus,
		Metrics:     metrics,
	}, nil
}

// buildMetrics configures the StatsD sink when enabled. A failed dial
// degrades to a disabled client rather than failing startup.
func buildMetrics(logger *slog.Logger, cfg config.ObservabilityConfig) *statsd.Client {
	if !cfg.Metrics.IsEnabled() {
		return nil
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  "alertsync",
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// buildBus selects the event fabric from config. Redis mode requires the
// shared Redis client.
//
//nolint:ireturn // the fabric is chosen at runtime from config.
func buildBus(deps ServiceDeps, logger *slog.Logger, metrics *statsd.Client) (bus.Bus, error) {
	var sink statsd.Sink
	if metrics != nil {
		sink = metrics
	}

	switch deps.Config.Sync.Bus {
	case config.BusModeRedis:
		if deps.RedisClient == nil {
			return nil, errors.New("SYNC_BUS=redis requires a redis connection")
		}
		return bus.NewRedis(bus.RedisOptions{
			Client:        deps.RedisClient,
			ChannelPrefix: deps.Config.Sync.ChannelPrefix,
			QueueSize:     deps.Config.Sync.SubscriberQueue,
			Logger:        logger,
			Metrics:       sink,
		})
	case config.BusModeMemory:
		return bus.NewMemory(bus.MemoryOptions{
			QueueSize: deps.Config.Sync.SubscriberQueue,
			Logger:    logger,
			Metrics:   sink,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported bus mode %q", deps.Config.Sync.Bus)
	}
}

func buildAuthService(deps ServiceDeps, logger *slog.Logger) (*service.AuthService, error) {
	provider, err := BuildAuthProvider(deps.Config, logger)
	if err != nil {
		return nil, fmt.Errorf("build auth provider: %w", err)
	}

	if deps.RedisClient == nil {
		return nil, errors.New("session store requires a redis connection")
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Sessions: adapterredis.NewSessionStore(deps.RedisClient),
		Roles: authroles.StaticRoleMapper{
			AdminGroup:    deps.Config.Auth.AdminGroup,
			OperatorGroup: deps.Config.Auth.OperatorGroup,
		},
	}), nil
}
