package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oncallops/alertsync/internal/bus"
	"github.com/oncallops/alertsync/internal/domain/model"
	"github.com/oncallops/alertsync/internal/observability/statsd"
)

// DefaultHeartbeatInterval keeps idle SSE connections alive through proxies.
const DefaultHeartbeatInterval = 30 * time.Second

// SubscriberBus is the attach capability the stream gateway needs from the
// event bus.
type SubscriberBus interface {
	Subscribe(tenantID string) (*bus.Subscription, error)
}

// FeedFilterInterface evaluates optional subscriber filters.
type FeedFilterInterface interface {
	Validate(expr string) error
	Matches(expr string, event model.DomainEvent) bool
}

// StreamHandlersOptions groups dependencies for StreamHandlers.
type StreamHandlersOptions struct {
	Bus       SubscriberBus
	Filters   FeedFilterInterface
	Logger    *slog.Logger
	Metrics   statsd.Sink
	Heartbeat time.Duration
}

// StreamHandlers serves the live alert feed over server-sent events. Each
// connection is one bus subscription on the session's tenant channel; the
// tenant is never taken from the request.
type StreamHandlers struct {
	bus       SubscriberBus
	filters   FeedFilterInterface
	logger    *slog.Logger
	metrics   statsd.Sink
	heartbeat time.Duration
}

// NewStreamHandlers constructs StreamHandlers.
func NewStreamHandlers(opts StreamHandlersOptions) (*StreamHandlers, error) {
	if opts.Bus == nil {
		return nil, errors.New("SubscriberBus is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamHandlers{
		bus:       opts.Bus,
		filters:   opts.Filters,
		logger:    logger,
		metrics:   opts.Metrics,
		heartbeat: heartbeat,
	}, nil
}

// Stream handles GET /api/alerts/stream. It holds the connection open and
// writes one SSE data frame per alert_update on the tenant channel. A bad
// filter expression fails the attach with 400; after attach, events that do
// not match the filter are skipped for this subscriber only.
func (h *StreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}

	filter := r.URL.Query().Get("filter")
	if filter != "" && h.filters != nil {
		if err := h.filters.Validate(filter); err != nil {
			WriteAppError(w, err)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "streaming_unsupported",
			Err:     errors.New("response writer does not support streaming"),
		})
		return
	}

	sub, err := h.bus.Subscribe(sess.TenantID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "feed subscribe failed",
			"tenant_id", sess.TenantID, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "subscribe_failed",
			Err:     errors.New("feed unavailable"),
		})
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	h.logger.InfoContext(r.Context(), "feed subscriber attached",
		"tenant_id", sess.TenantID, "user_id", sess.UserID)
	if h.metrics != nil {
		h.metrics.Count("stream.attach", 1, nil)
	}
	defer func() {
		h.logger.InfoContext(r.Context(), "feed subscriber detached",
			"tenant_id", sess.TenantID, "user_id", sess.UserID)
		if h.metrics != nil {
			h.metrics.Count("stream.detach", 1, nil)
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case event, open := <-sub.Events():
			if !open {
				// Forced detach, typically backpressure. The client falls
				// back to a feed reload and may reconnect.
				h.logger.WarnContext(r.Context(), "feed subscription terminated by bus",
					"tenant_id", sess.TenantID, "user_id", sess.UserID)
				return
			}
			if filter != "" && h.filters != nil && !h.filters.Matches(filter, event) {
				continue
			}
			if err := writeSSEEvent(w, event); err != nil {
				return
			}
			flusher.Flush()
			if h.metrics != nil {
				h.metrics.Count("stream.delivered", 1, nil)
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event model.DomainEvent) error {
	payload, err := event.MarshalWire()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
