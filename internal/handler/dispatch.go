package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/request"

	"go.opentelemetry.io/otel/attribute"
)

// maxRequestLineBytes bounds how much of the client's initial bytes the
// dispatcher will buffer looking for a terminating CRLF/LF.
const maxRequestLineBytes = 8 * 1024

var forbiddenResponse = []byte("HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n")

// Dispatch is the entry point a worker calls for one accepted connection.
// It reads and parses the request line, applies the blocklist, and routes
// to the GET or CONNECT handler. It never closes conn; that's the worker's
// job once Dispatch returns (spec 4.D).
func Dispatch(ctx context.Context, conn net.Conn, deps *Deps) {
	start := time.Now()

	buf, err := readRequestLine(conn)
	if err != nil {
		return
	}

	desc, err := request.Parse(buf)
	if err != nil {
		deps.Logger.Error(ctx, "parse failure", err)
		deps.Metrics.RecordConnectionRejected("parse_error")
		return
	}

	if deps.Blocklist.IsBlocked(desc.Host) {
		deps.Logger.Info(ctx, "blocked host", slog.String("host", desc.Host))
		deps.Metrics.RecordConnectionRejected("blocked_host")
		conn.Write(forbiddenResponse)
		return
	}

	method := string(desc.Method)
	deps.Metrics.RecordConnectionAccepted(method)

	ctx, span := deps.Logger.StartSpan(ctx, "handle_"+strings.ToLower(method),
		attribute.String("host", desc.Host),
		attribute.String("path", desc.Path),
	)
	defer span.End()

	switch desc.Method {
	case request.MethodConnect:
		handleConnect(ctx, conn, desc, deps)
	case request.MethodGet:
		handleGet(ctx, conn, desc, deps)
	}

	deps.Metrics.ObserveConnectionDuration(method, time.Since(start))
}

// readRequestLine reads up to the first LF (or maxRequestLineBytes,
// whichever comes first) from conn, one byte at a time. A connection that
// closes without sending any bytes returns an error and nothing to parse;
// a connection that sends bytes without a terminating newline returns
// those bytes with a nil error, so request.Parse can reject it as
// malformed (spec 8: "Request line without CRLF: parse fails").
//
// This deliberately avoids wrapping conn in a bufio.Reader: a bufio.Reader
// pulls a full internal buffer's worth of bytes from the socket on each
// underlying Read, which on a real TCP connection can include bytes past
// the request line — the start of a CONNECT tunnel's TLS ClientHello, for
// instance. Handing conn off to handleConnect/handleGet afterward would
// silently drop whatever the discarded bufio.Reader had already consumed.
// Reading one byte at a time guarantees conn's read position stops exactly
// at the newline, so the handler it's dispatched to sees every subsequent
// byte the client sent (spec 8 scenario 3).
func readRequestLine(conn net.Conn) ([]byte, error) {
	var line []byte
	var b [1]byte
	for len(line) < maxRequestLineBytes {
		n, err := conn.Read(b[:])
		if n > 0 {
			line = append(line, b[0])
			if b[0] == '\n' {
				return line, nil
			}
		}
		if err != nil {
			if len(line) == 0 {
				return nil, err
			}
			if errors.Is(err, io.EOF) {
				return line, nil
			}
			return nil, err
		}
	}
	return line, nil
}
