// Package proxy implements the acceptor/lifecycle component: it owns the
// listening socket, the accept loop, signal-driven shutdown, and the
// teardown ordering across the queue, the worker pool, and every ambient
// service (cache, log sink, blocklist, metrics, tracing). Structurally
// this follows the teacher's NewServer/Start/Shutdown factory-and-lifecycle
// shape, generalized from an http.Server to a raw net.Listener accept loop.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/blocklist"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/cache"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/config"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/handler"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/logging"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/metrics"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/queue"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/tracing"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/worker"
)

// Server is the caching forward proxy's acceptor and lifecycle owner.
type Server struct {
	cfg *config.Config

	blocklist *blocklist.Blocklist
	logger    *logging.Logger
	metrics   *metrics.Metrics
	cache     *cache.Cache
	queue     *queue.Queue
	deps      *handler.Deps

	tracingCleanup func()
	adminServer    *http.Server

	listener      net.Listener
	pool          *worker.Pool
	shutdown      *atomic.Bool
	activeWorkers int32

	ready chan struct{} // closed once the listener is bound, for tests
}

// NewServer wires every ambient and domain dependency from cfg: blocklist,
// log sink, tracing, metrics, cache, and the bounded task queue (spec 4.G
// startup order, steps that precede spawning workers and opening the
// listener, which Start does).
func NewServer(cfg *config.Config) (*Server, error) {
	bl, err := blocklist.Load(cfg.Blocklist.Path)
	if err != nil {
		return nil, fmt.Errorf("proxy: load blocklist: %w", err)
	}

	logger, err := logging.New(cfg.Log.Path, cfg.Tracing.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("proxy: open log sink: %w", err)
	}

	tracingCleanup, err := tracing.InitTracing(cfg.Tracing)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("proxy: init tracing: %w", err)
	}

	m := metrics.NewMetrics()

	onEvict := func(key string, size int, currentBytes int64) {
		m.RecordCacheEviction()
		m.SetCacheBytes(currentBytes)
	}
	onWarn := func(format string, args ...any) {
		logger.Warn(context.Background(), fmt.Sprintf(format, args...))
	}
	c := cache.New(cfg.Cache.SizeBytes, cfg.Cache.ElementCeilingBytes, onEvict, onWarn)

	q := queue.New(cfg.Queue.Capacity)
	shutdown := &atomic.Bool{}

	deps := &handler.Deps{
		Cache:          c,
		Blocklist:      bl,
		Logger:         logger,
		Metrics:        m,
		ElementCeiling: cfg.Cache.ElementCeilingBytes,
		Shutdown:       shutdown,
	}

	var adminServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		adminServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	return &Server{
		cfg:            cfg,
		blocklist:      bl,
		logger:         logger,
		metrics:        m,
		cache:          c,
		queue:          q,
		deps:           deps,
		tracingCleanup: tracingCleanup,
		adminServer:    adminServer,
		shutdown:       shutdown,
		ready:          make(chan struct{}),
	}, nil
}

// Addr blocks until the listener is bound and returns its address. Intended
// for tests that bind to port 0 and need to discover the chosen port.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Start installs signal handlers, opens the listening socket, spawns the
// worker pool, and runs the accept loop until shutdown. It returns nil on
// a clean shutdown and a non-nil error on startup failure or an
// unrecoverable accept error (spec 6: exit codes).
func (s *Server) Start() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		s.logger.Fatal(context.Background(), "listen failed", err, slog.Int("port", s.cfg.Server.Port))
		return fmt.Errorf("proxy: listen: %w", err)
	}
	s.listener = ln
	close(s.ready)

	s.pool = worker.Start(s.cfg.Threads, s.queue, s.deps, s.setActiveWorkers)

	if s.adminServer != nil {
		go func() {
			if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error(context.Background(), "admin server failed", err)
			}
		}()
	}

	go func() {
		<-sigCh
		s.logger.Info(context.Background(), "shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			s.logger.Error(context.Background(), "shutdown error", err)
		}
	}()

	s.logger.Info(context.Background(), "proxy listening", slog.Int("port", s.cfg.Server.Port))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			s.logger.Error(context.Background(), "accept failed", err)
			return fmt.Errorf("proxy: accept: %w", err)
		}
		s.metrics.SetQueueDepth(s.queue.Len())
		s.queue.Enqueue(conn)
	}
}

// Shutdown runs the teardown sequence spec 4.G/5 specify: signal the queue
// shut down, join every worker, close the listening socket, free the cache,
// then close the log sink. The blocklist is immutable and needs no
// teardown beyond letting it be garbage collected.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	s.queue.Close()

	joined := make(chan struct{})
	go func() {
		s.pool.Join()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
	}

	if s.listener != nil {
		s.listener.Close()
	}
	if s.adminServer != nil {
		s.adminServer.Shutdown(ctx)
	}

	s.cache.Close()

	if s.tracingCleanup != nil {
		s.tracingCleanup()
	}

	return s.logger.Close()
}

func (s *Server) setActiveWorkers(delta int) {
	n := atomic.AddInt32(&s.activeWorkers, int32(delta))
	s.metrics.SetActiveWorkers(int(n))
}
