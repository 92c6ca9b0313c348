package handler

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/blocklist"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/cache"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/logging"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/metrics"
)

func testDeps(t *testing.T, entries []string) *Deps {
	t.Helper()

	l, err := logging.New(filepath.Join(t.TempDir(), "proxy.log"), "test")
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	c := cache.New(1<<20, 1<<16, nil, nil)
	t.Cleanup(c.Close)

	blocklistPath := filepath.Join(t.TempDir(), "blocklist.txt")
	if err := os.WriteFile(blocklistPath, []byte(strings.Join(entries, "\n")), 0o644); err != nil {
		t.Fatalf("write blocklist: %v", err)
	}
	b, err := blocklist.Load(blocklistPath)
	if err != nil {
		t.Fatalf("blocklist.Load: %v", err)
	}

	return &Deps{
		Cache:          c,
		Blocklist:      b,
		Logger:         l,
		Metrics:        metrics.NewMetrics(),
		ElementCeiling: 1 << 16,
		Shutdown:       &atomic.Bool{},
	}
}
