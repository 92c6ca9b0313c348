// Package handler implements the per-connection request state machine:
// parse the request line, apply the blocklist, then dispatch to the GET
// cache/origin handler or the CONNECT tunnel handler (spec components E,
// F, plus the shared dispatch step G hands off to D).
package handler

import (
	"sync/atomic"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/blocklist"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/cache"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/logging"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/metrics"
)

// Deps bundles everything a connection handler needs. Constructed once at
// startup and shared read-only across every worker.
type Deps struct {
	Cache          *cache.Cache
	Blocklist      *blocklist.Blocklist
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
	ElementCeiling int64
	Shutdown       *atomic.Bool
}
