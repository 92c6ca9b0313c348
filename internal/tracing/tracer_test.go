package tracing

import (
	"testing"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/config"
)

// TestInitTracingDisabledIsNoop verifies a disabled config returns a
// harmless cleanup without requiring any exporter endpoint.
func TestInitTracingDisabledIsNoop(t *testing.T) {
	cleanup, err := InitTracing(config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cleanup()
}

// TestInitTracingEnabledWithoutEndpointErrors verifies enabling tracing
// without configuring any exporter endpoint is rejected rather than
// silently tracing nowhere.
func TestInitTracingEnabledWithoutEndpointErrors(t *testing.T) {
	_, err := InitTracing(config.TracingConfig{Enabled: true})
	if err == nil {
		t.Error("expected error when no exporter endpoint is configured")
	}
}
