package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/request"
)

// handleGet implements component E: cache lookup, origin connect, request
// rewrite, response streaming, and conditional cache population.
func handleGet(ctx context.Context, conn net.Conn, desc request.Descriptor, deps *Deps) {
	if desc.Host == "" || desc.Path == "" {
		deps.Logger.Error(ctx, "get: missing host or path", nil)
		return
	}
	key := desc.Host + desc.Path

	if h, ok := deps.Cache.Get(key); ok {
		deps.Metrics.RecordCacheHit()
		conn.Write(h.Bytes())
		h.Release()
		return
	}
	deps.Metrics.RecordCacheMiss()

	port := desc.Port
	if port == "" {
		port = "80"
	}

	origin, err := net.Dial("tcp", net.JoinHostPort(desc.Host, port))
	if err != nil {
		deps.Logger.Error(ctx, "origin connect failed", err, slog.String("host", desc.Host))
		return
	}
	defer origin.Close()

	reqLine := fmt.Sprintf("GET %s %s\r\nHost: %s\r\nConnection: close\r\n\r\n", desc.Path, desc.Version, desc.Host)
	if _, err := origin.Write([]byte(reqLine)); err != nil {
		deps.Logger.Error(ctx, "origin write failed", err, slog.String("host", desc.Host))
		return
	}

	streamToClient(ctx, conn, origin, key, deps)
}

// streamToClient reads the origin's response one chunk at a time, forwards
// each chunk to the client immediately, and accumulates it for caching.
// Accumulation stops (without aborting the stream) once the total exceeds
// the per-element ceiling: the response still reaches the client in full,
// it just never becomes a cache entry (spec 4.E, 9).
func streamToClient(ctx context.Context, client, origin net.Conn, key string, deps *Deps) {
	buf := make([]byte, deps.ElementCeiling)
	var accumulated []byte
	var total int64
	overCeiling := false

	for {
		n, rerr := origin.Read(buf)
		if n > 0 {
			if _, werr := client.Write(buf[:n]); werr != nil {
				deps.Logger.Error(ctx, "client write failed", werr)
				return
			}
			total += int64(n)
			if !overCeiling {
				if total > deps.ElementCeiling {
					overCeiling = true
					accumulated = nil
				} else {
					accumulated = append(accumulated, buf[:n]...)
				}
			}
		}
		if rerr != nil {
			break
		}
	}

	if total > 0 && !overCeiling {
		deps.Cache.Put(key, accumulated)
		deps.Metrics.SetCacheBytes(deps.Cache.CurrentBytes())
	}
}
