package statsd

import (
	"net"
	"testing"
	"time"
)

func TestMetricName(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "alertsync"}
	tests := map[string]string{
		"bus.publish":      "alertsync.bus.publish",
		" stream.attach ":  "alertsync.stream.attach",
		".dismiss.retry.":  "alertsync.dismiss.retry",
		"multi word name":  "alertsync.multi_word_name",
		"":                 "",
		"   ":              "",
	}

	for input, want := range tests {
		if got := c.metricName(input); got != want {
			t.Fatalf("metricName(%q) = %q, want %q", input, got, want)
		}
	}

	bare := &Client{}
	if got := bare.metricName("bus.publish"); got != "bus.publish" {
		t.Fatalf("metricName without prefix = %q", got)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", "fabric": "memory"}
	local := map[string]string{"env": "stage", "result": "ok"}

	got := formatTags(global, local)
	want := "|#env:stage,fabric:memory,result:ok"

	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatTagsEmpty(t *testing.T) {
	t.Parallel()

	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{"env": "prod"}
	cloned := cloneTags(original)
	if cloned == nil {
		t.Fatal("cloneTags returned nil map")
	}

	cloned["env"] = "stage"
	if original["env"] != "prod" {
		t.Fatal("cloneTags did not copy values")
	}

	if cloneTags(nil) != nil {
		t.Fatal("cloneTags(nil) should return nil")
	}
}

func TestClientEmitsLineProtocol(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	client, err := NewClient(Config{
		Enabled: true,
		Address: pc.LocalAddr().String(),
		Prefix:  "alertsync",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	client.Count("bus.publish", 1, map[string]string{"fabric": "memory"})

	buf := make([]byte, 512)
	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	got := string(buf[:n])
	want := "alertsync.bus.publish:1|c|#fabric:memory"
	if got != want {
		t.Fatalf("line mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestDisabledClientDiscards(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// Must be a silent no-op, including on a nil receiver.
	client.Count("bus.publish", 1, nil)
	client.Gauge("queue.depth", 3.5, nil)
	client.Timing("dismiss", 12*time.Millisecond, nil)

	var nilClient *Client
	nilClient.Count("bus.publish", 1, nil)
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
