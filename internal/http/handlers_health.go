package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything with a liveness probe, typically *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	db     Pinger
	logger *slog.Logger
}

// NewHealthHandlers constructs HealthHandlers. The db pinger is optional.
func NewHealthHandlers(db Pinger, logger *slog.Logger) *HealthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandlers{db: db, logger: logger}
}

// Health handles GET /healthz. It reports unhealthy when the database does
// not answer a ping within two seconds.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			WriteError(w, ErrorParams{
				Code:    http.StatusServiceUnavailable,
				ErrCode: "unhealthy",
				Err:     errors.New("database unreachable"),
			})
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
