package bus

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/alertsync/internal/domain/model"
)

// testRedisClient builds a client without connecting; go-redis dials lazily.
func testRedisClient() redis.UniversalClient {
	return redis.NewClient(&redis.Options{Addr: "localhost:6379"})
}

func TestRedis_RequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(RedisOptions{})
	require.Error(t, err)
}

func TestRedis_ChannelNameRoundTrip(t *testing.T) {
	t.Parallel()

	bus, err := NewRedis(RedisOptions{Client: testRedisClient()})
	require.NoError(t, err)

	channel := bus.ChannelName("tenant-a")
	assert.Equal(t, DefaultChannelPrefix+"tenant-a", channel)
	assert.Equal(t, "tenant-a", bus.TenantFromChannel(channel))
}

func TestRedis_CustomChannelPrefix(t *testing.T) {
	t.Parallel()

	bus, err := NewRedis(RedisOptions{Client: testRedisClient(), ChannelPrefix: "sync."})
	require.NoError(t, err)

	assert.Equal(t, "sync.tenant-a", bus.ChannelName("tenant-a"))
}

func TestMarshalEvent_RoundTrip(t *testing.T) {
	t.Parallel()

	event := testEvent("tenant-a", "alert-1", 7)
	payload, err := marshalEvent(event)
	require.NoError(t, err)

	decoded, err := unmarshalEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, event.TenantID, decoded.TenantID)
	assert.Equal(t, event.AlertID, decoded.AlertID)
	assert.Equal(t, event.Status, decoded.Status)
	assert.Equal(t, event.Version, decoded.Version)
}

func TestUnmarshalEvent_RejectsMissingEventType(t *testing.T) {
	t.Parallel()

	_, err := unmarshalEvent([]byte(`{"id":"alert-1","version":1}`))
	require.Error(t, err)
}

func TestUnmarshalEvent_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := unmarshalEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestUnmarshalEvent_PassesUnknownEventTypeThrough(t *testing.T) {
	t.Parallel()

	// Unknown event types are a consumer concern; the fabric must deliver them.
	event, err := unmarshalEvent([]byte(`{"event":"alert_enriched","tenant_id":"tenant-a","id":"alert-1","version":2}`))
	require.NoError(t, err)
	assert.Equal(t, "alert_enriched", event.EventType)
}

func TestUnmarshalEvent_IgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	event, err := unmarshalEvent([]byte(`{"event":"alert_update","tenant_id":"tenant-a","id":"alert-1","version":3,"shard":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), event.Version)
}

func TestWireEvent_OmitsTopLevelTenant(t *testing.T) {
	t.Parallel()

	event := model.DomainEvent{
		TenantID:  "tenant-a",
		EventType: model.EventTypeAlertUpdate,
		AlertID:   "alert-1",
		Status:    model.AlertStatusDismissed,
		Version:   1,
	}
	payload, err := event.MarshalWire()
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "tenant")

	var wire model.WireEvent
	require.NoError(t, json.Unmarshal(payload, &wire))
	assert.Equal(t, model.EventTypeAlertUpdate, wire.Event)
	assert.Equal(t, "alert-1", wire.ID)
}
