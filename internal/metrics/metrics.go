// Package metrics provides the proxy's Prometheus instrumentation. It keeps
// the teacher's CounterVec/GaugeVec/HistogramVec + MustRegister shape, but
// the labels move from HTTP request/status/backend to the raw-connection
// vocabulary this proxy actually speaks: method (GET/CONNECT), cache
// outcome, tunnel direction.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus instrument the proxy exposes.
type Metrics struct {
	connectionsTotal    *prometheus.CounterVec
	connectionsRejected *prometheus.CounterVec
	connectionDuration  *prometheus.HistogramVec
	tunneledBytesTotal  *prometheus.CounterVec
	queueDepth          prometheus.Gauge
	activeWorkers       prometheus.Gauge
	cacheHitsTotal      prometheus.Counter
	cacheMissesTotal    prometheus.Counter
	cacheEvictionsTotal prometheus.Counter
	cacheBytes          prometheus.Gauge
}

var (
	instance *Metrics
	once     sync.Once
)

// NewMetrics returns the process-wide Metrics instance, building and
// registering every instrument with the default registry on first call.
// Prometheus panics on duplicate registration, so this is deliberately a
// singleton rather than a fresh set of instruments per call.
func NewMetrics() *Metrics {
	once.Do(func() {
		instance = buildMetrics()
	})
	return instance
}

func buildMetrics() *Metrics {
	m := &Metrics{
		connectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_connections_total",
				Help: "Total accepted connections by method (GET, CONNECT).",
			},
			[]string{"method"},
		),
		connectionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_connections_rejected_total",
				Help: "Total connections rejected before tunneling, by reason.",
			},
			[]string{"reason"},
		),
		connectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_connection_duration_seconds",
				Help:    "Time spent handling a connection end to end, by method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		tunneledBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_tunneled_bytes_total",
				Help: "Bytes relayed through CONNECT tunnels, by direction.",
			},
			[]string{"direction"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_queue_depth",
			Help: "Current number of connections waiting in the task queue.",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_active_workers",
			Help: "Current number of workers handling a connection.",
		}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_hits_total",
			Help: "Total GET responses served from cache.",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_misses_total",
			Help: "Total GET responses fetched from origin.",
		}),
		cacheEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_evictions_total",
			Help: "Total cache entries evicted to make room.",
		}),
		cacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_cache_bytes",
			Help: "Current bytes held in the response cache.",
		}),
	}

	prometheus.MustRegister(
		m.connectionsTotal,
		m.connectionsRejected,
		m.connectionDuration,
		m.tunneledBytesTotal,
		m.queueDepth,
		m.activeWorkers,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.cacheEvictionsTotal,
		m.cacheBytes,
	)

	return m
}

// RecordConnectionAccepted records an accepted connection for method
// ("GET" or "CONNECT").
func (m *Metrics) RecordConnectionAccepted(method string) {
	m.connectionsTotal.WithLabelValues(method).Inc()
}

// RecordConnectionRejected records a connection turned away before
// tunneling (e.g. reason "blocked_host", "parse_error").
func (m *Metrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

// ObserveConnectionDuration records how long handling a connection took.
func (m *Metrics) ObserveConnectionDuration(method string, d time.Duration) {
	m.connectionDuration.WithLabelValues(method).Observe(d.Seconds())
}

// AddTunneledBytes adds n bytes relayed in the given direction
// ("client_to_origin" or "origin_to_client").
func (m *Metrics) AddTunneledBytes(direction string, n int) {
	if n <= 0 {
		return
	}
	m.tunneledBytesTotal.WithLabelValues(direction).Add(float64(n))
}

// SetQueueDepth reports the task queue's current length.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// SetActiveWorkers reports how many workers are currently handling a
// connection rather than waiting on the queue.
func (m *Metrics) SetActiveWorkers(n int) {
	m.activeWorkers.Set(float64(n))
}

// RecordCacheHit records a GET served from cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a GET that required an origin fetch.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}

// RecordCacheEviction records an LRU eviction.
func (m *Metrics) RecordCacheEviction() {
	m.cacheEvictionsTotal.Inc()
}

// SetCacheBytes reports the cache's current byte usage.
func (m *Metrics) SetCacheBytes(n int64) {
	m.cacheBytes.Set(float64(n))
}

// Handler returns the HTTP handler the admin server exposes at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
