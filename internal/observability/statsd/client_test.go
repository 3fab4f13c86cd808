package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestJoinName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, name, want string
	}{
		{"", " job/metric ", "job_metric"},
		{"summarizer", "job..transition", "summarizer.job.transition"},
		{"summarizer", "..", ""},
		{"", "multi  space", "multi__space"},
	}

	for _, tt := range tests {
		if got := joinName(tt.prefix, tt.name); got != tt.want {
			t.Fatalf("joinName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestLine(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " summarizer "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	got := Line("job.transition", "1", "c", global, local)
	want := "job.transition:1|c|#env:stage,result:success,service:summarizer"
	if got != want {
		t.Fatalf("Line mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := Line("pool.queued", "3", "g", nil, nil); got != "pool.queued:3|g" {
		t.Fatalf("Line without tags = %q", got)
	}
}

func TestDisabledClientDropsMetrics(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Enabled() {
		t.Fatal("disabled client reports enabled")
	}
	c.Count("job.transition", 1, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nilClient *Client
	nilClient.Timing("x", time.Second, nil)
	if nilClient.Enabled() {
		t.Fatal("nil client reports enabled")
	}
}

func TestClientWritesDatagrams(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen unavailable: %v", err)
	}
	defer pc.Close()

	c, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     ".summarizer.",
		GlobalTags: map[string]string{"env": "test"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	c.Timing("job.duration", 1500*time.Microsecond, map[string]string{"stage": "fetch"})

	buf := make([]byte, 512)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read datagram: %v", err)
	}
	got := string(buf[:n])
	if !strings.HasPrefix(got, "summarizer.job.duration:1.5|ms") {
		t.Fatalf("unexpected datagram %q", got)
	}
	if !strings.HasSuffix(got, "|#env:test,stage:fetch") {
		t.Fatalf("unexpected tags in %q", got)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Count("a", 2, map[string]string{"k": "v"})
	r.Gauge("b", 0.5, nil)
	r.Timing("a", time.Second, nil)

	if got := len(r.Points("a")); got != 2 {
		t.Fatalf("Points(a) = %d, want 2", got)
	}
	if got := len(r.Points("")); got != 3 {
		t.Fatalf("Points() = %d, want 3", got)
	}
	if p := r.Points("b")[0]; p.Kind != "g" || p.Value != 0.5 {
		t.Fatalf("gauge point = %+v", p)
	}
}
