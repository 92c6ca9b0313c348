package handler

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/request"
)

// tunnelBufferSize is the spec's fixed 8 KiB per-read bound for the
// CONNECT splice loop (spec 4.F).
const tunnelBufferSize = 8 * 1024

// tunnelIdleTimeout is how long the readiness loop waits for either side
// before re-entering the wait; it does not tear the tunnel down (spec 4.F,
// 9: "does not cancel the tunnel").
const tunnelIdleTimeout = 60 * time.Second

var connectEstablished = []byte("HTTP/1.1 200 Connection established\r\n\r\n")

// handleConnect implements component F: dial the origin, reply 200, then
// splice bytes in both directions until either side closes or shutdown is
// observed.
func handleConnect(ctx context.Context, client net.Conn, desc request.Descriptor, deps *Deps) {
	port := desc.Port
	if port == "" {
		port = "443"
	}

	origin, err := net.Dial("tcp", net.JoinHostPort(desc.Host, port))
	if err != nil {
		deps.Logger.Error(ctx, "origin connect failed", err, slog.String("host", desc.Host))
		return
	}
	defer origin.Close()

	if _, err := client.Write(connectEstablished); err != nil {
		deps.Logger.Error(ctx, "client write failed", err)
		return
	}

	splice(ctx, client, origin, deps)
}

// chunk is one read result handed from a reader goroutine to splice's main
// loop: either up to tunnelBufferSize bytes of data, or a terminal error
// (including io.EOF on clean close).
type chunk struct {
	data []byte
	err  error
}

// readLoop continuously reads from conn and sends each chunk on ch. It
// exits after the first read error, having sent that error as the chunk's
// err field so the main loop can terminate the tunnel.
func readLoop(conn net.Conn, ch chan<- chunk) {
	buf := make([]byte, tunnelBufferSize)
	for {
		n, err := conn.Read(buf)
		var data []byte
		if n > 0 {
			data = make([]byte, n)
			copy(data, buf[:n])
		}
		ch <- chunk{data: data, err: err}
		if err != nil {
			return
		}
	}
}

// splice is the readiness-driven bidirectional copy loop. Each pass checks
// the client side then the origin side (non-blocking); whichever has data
// ready is forwarded immediately, client-to-origin before origin-to-client
// when both are ready (spec 4.F fairness rule). When neither side is
// ready, it blocks on both plus a 60s timeout that just re-enters the loop.
func splice(ctx context.Context, client, origin net.Conn, deps *Deps) {
	clientCh := make(chan chunk, 1)
	originCh := make(chan chunk, 1)

	go readLoop(client, clientCh)
	go readLoop(origin, originCh)

	for {
		if deps.Shutdown != nil && deps.Shutdown.Load() {
			return
		}

		progressed := false

		select {
		case c := <-clientCh:
			if !forwardChunk(ctx, origin, c, deps, "client_to_origin") {
				return
			}
			progressed = true
		default:
		}

		select {
		case c := <-originCh:
			if !forwardChunk(ctx, client, c, deps, "origin_to_client") {
				return
			}
			progressed = true
		default:
		}

		if progressed {
			continue
		}

		select {
		case c := <-clientCh:
			if !forwardChunk(ctx, origin, c, deps, "client_to_origin") {
				return
			}
		case c := <-originCh:
			if !forwardChunk(ctx, client, c, deps, "origin_to_client") {
				return
			}
		case <-time.After(tunnelIdleTimeout):
		}
	}
}

// forwardChunk writes c's data (if any) to dst and reports whether the
// tunnel should continue. A 0-byte read or a write error terminates it.
func forwardChunk(ctx context.Context, dst net.Conn, c chunk, deps *Deps, direction string) bool {
	if len(c.data) > 0 {
		if _, err := dst.Write(c.data); err != nil {
			deps.Logger.Info(ctx, "tunnel closed", slog.String("reason", "write_error"), slog.String("direction", direction))
			return false
		}
		deps.Metrics.AddTunneledBytes(direction, len(c.data))
	}
	if c.err != nil {
		deps.Logger.Info(ctx, "tunnel closed", slog.String("reason", "eof"), slog.String("direction", direction))
		return false
	}
	return true
}
