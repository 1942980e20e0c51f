package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oncallops/alertsync/config"
	httpx "github.com/oncallops/alertsync/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// BuildHTTPServer wires the router and returns an unstarted server.
func BuildHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Services == nil {
		return nil, errors.New("services are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	login, err := httpx.NewAuthHandlers(httpx.AuthHandlersOptions{
		Auth:          cfg.Services.Auth,
		Logger:        logger,
		CallbackURL:   CallbackURL(cfg.Config),
		CookieDomain:  cfg.Config.HTTP.CookieDomain,
		SecureCookies: cfg.Config.HTTP.SecureCookies && !cfg.Config.IsDev,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth handlers: %w", err)
	}

	alerts, err := httpx.NewAlertHandlers(httpx.AlertHandlersOptions{
		Alerts:      cfg.Services.Alerts,
		Transitions: cfg.Services.Transitions,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build alert handlers: %w", err)
	}

	stream, err := httpx.NewStreamHandlers(httpx.StreamHandlersOptions{
		Bus:       cfg.Services.Bus,
		Filters:   cfg.Services.Filters,
		Logger:    logger,
		Metrics:   cfg.Services.Metrics,
		Heartbeat: cfg.Config.Sync.HeartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("build stream handlers: %w", err)
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Auth:   cfg.Services.Auth,
		Login:  login,
		Alerts: alerts,
		Stream: stream,
		Health: httpx.NewHealthHandlers(cfg.DB, logger),
		Logger: logger,
	})

	return &http.Server{
		Addr:    cfg.Config.HTTP.Addr,
		Handler: router,
		// WriteTimeout stays unset: SSE connections are long-lived and
		// heartbeat-paced, a fixed write deadline would sever them.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// RunHTTPServer serves until the context is canceled or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func RunHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
