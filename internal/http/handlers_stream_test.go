package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/alertsync/internal/bus"
	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
)

// stubFilter is a deterministic FeedFilterInterface.
type stubFilter struct {
	validateErr error
	match       func(event model.DomainEvent) bool
}

func (f *stubFilter) Validate(string) error { return f.validateErr }

func (f *stubFilter) Matches(_ string, event model.DomainEvent) bool {
	if f.match == nil {
		return true
	}
	return f.match(event)
}

type failingBus struct{}

func (failingBus) Subscribe(string) (*bus.Subscription, error) {
	return nil, errors.New("fabric down")
}

func newStreamHandlers(t *testing.T, b SubscriberBus, filters FeedFilterInterface) *StreamHandlers {
	t.Helper()
	h, err := NewStreamHandlers(StreamHandlersOptions{
		Bus:       b,
		Filters:   filters,
		Logger:    discardLogger(),
		Heartbeat: time.Minute,
	})
	require.NoError(t, err)
	return h
}

// streamServer serves the stream handler with the session preloaded, the way
// RequireAuth would have.
func streamServer(t *testing.T, h *StreamHandlers, sess *domainauth.Session) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess != nil {
			r = r.WithContext(SetSessionInContext(r.Context(), sess))
		}
		h.Stream(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readDataFrame scans SSE lines until the next data: frame, skipping
// comments and blanks.
func readDataFrame(t *testing.T, r *bufio.Reader) model.WireEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				errs <- err
				return
			}
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
	}()

	select {
	case raw := <-lines:
		var event model.WireEvent
		require.NoError(t, json.Unmarshal([]byte(raw), &event))
		return event
	case err := <-errs:
		t.Fatalf("stream closed before data frame: %v", err)
	case <-deadline:
		t.Fatal("timed out waiting for data frame")
	}
	return model.WireEvent{}
}

func waitForSubscriber(t *testing.T, mem *bus.Memory, tenantID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for mem.SubscriberCount(tenantID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_RequiresSession(t *testing.T) {
	t.Parallel()

	h := newStreamHandlers(t, bus.NewMemory(bus.MemoryOptions{Logger: discardLogger()}), nil)

	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStream_RejectsInvalidFilterAtAttach(t *testing.T) {
	t.Parallel()

	filters := &stubFilter{validateErr: apperrors.Validation("unbalanced expression")}
	h := newStreamHandlers(t, bus.NewMemory(bus.MemoryOptions{Logger: discardLogger()}), filters)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/stream?filter=severity==", nil)
	req = req.WithContext(SetSessionInContext(req.Context(), testSession(domainauth.RoleViewer)))
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream_SubscribeFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	h := newStreamHandlers(t, failingBus{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil)
	req = req.WithContext(SetSessionInContext(req.Context(), testSession(domainauth.RoleViewer)))
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "fabric down")
}

func TestStream_DeliversTenantEvents(t *testing.T) {
	t.Parallel()

	mem := bus.NewMemory(bus.MemoryOptions{Logger: discardLogger()})
	h := newStreamHandlers(t, mem, nil)
	sess := testSession(domainauth.RoleViewer)
	srv := streamServer(t, h, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/alerts/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	waitForSubscriber(t, mem, sess.TenantID)

	alert := &model.Alert{
		ID:       "a-1",
		TenantID: sess.TenantID,
		Title:    "disk almost full",
		Status:   model.AlertStatusDismissed,
		Version:  4,
	}
	require.NoError(t, mem.Publish(context.Background(), model.NewAlertUpdateEvent(alert)))

	got := readDataFrame(t, bufio.NewReader(resp.Body))
	assert.Equal(t, model.EventTypeAlertUpdate, got.Event)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, model.AlertStatusDismissed, got.Status)
	assert.Equal(t, int64(4), got.Version)

	// Client disconnect releases the subscription.
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for mem.SubscriberCount(sess.TenantID) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_FilterSkipsNonMatchingEvents(t *testing.T) {
	t.Parallel()

	mem := bus.NewMemory(bus.MemoryOptions{Logger: discardLogger()})
	filters := &stubFilter{match: func(event model.DomainEvent) bool {
		return event.Status == model.AlertStatusDismissed
	}}
	h := newStreamHandlers(t, mem, filters)
	sess := testSession(domainauth.RoleViewer)
	srv := streamServer(t, h, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/api/alerts/stream?filter=status%20==%20'dismissed'", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	waitForSubscriber(t, mem, sess.TenantID)

	skipped := &model.Alert{ID: "a-1", TenantID: sess.TenantID, Status: model.AlertStatusOpen, Version: 1}
	wanted := &model.Alert{ID: "a-2", TenantID: sess.TenantID, Status: model.AlertStatusDismissed, Version: 2}
	require.NoError(t, mem.Publish(context.Background(), model.NewAlertUpdateEvent(skipped)))
	require.NoError(t, mem.Publish(context.Background(), model.NewAlertUpdateEvent(wanted)))

	got := readDataFrame(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "a-2", got.ID, "non-matching event is skipped for this subscriber")
}

func TestStream_HeartbeatKeepsConnectionWarm(t *testing.T) {
	t.Parallel()

	mem := bus.NewMemory(bus.MemoryOptions{Logger: discardLogger()})
	h, err := NewStreamHandlers(StreamHandlersOptions{
		Bus:       mem,
		Logger:    discardLogger(),
		Heartbeat: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	sess := testSession(domainauth.RoleViewer)
	srv := streamServer(t, h, sess)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/alerts/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": heartbeat") {
			return
		}
	}
}
