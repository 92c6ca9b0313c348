package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetricsRecordAndExpose exercises every recorder and confirms the
// admin handler serves them without panicking.
func TestMetricsRecordAndExpose(t *testing.T) {
	m := NewMetrics()

	m.RecordConnectionAccepted("GET")
	m.RecordConnectionAccepted("CONNECT")
	m.RecordConnectionRejected("blocked_host")
	m.ObserveConnectionDuration("GET", 5*time.Millisecond)
	m.AddTunneledBytes("client_to_origin", 128)
	m.AddTunneledBytes("origin_to_client", 0)
	m.SetQueueDepth(3)
	m.SetActiveWorkers(2)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheEviction()
	m.SetCacheBytes(4096)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"proxy_connections_total",
		"proxy_cache_hits_total",
		"proxy_tunneled_bytes_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}

// TestNewMetricsIsSingleton verifies repeated calls return the same
// instance rather than re-registering (and panicking on) duplicate
// collectors.
func TestNewMetricsIsSingleton(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	if a != b {
		t.Error("expected NewMetrics to return the same instance on every call")
	}
}
