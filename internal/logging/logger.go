// Package logging implements the proxy's log sink: a timestamped,
// level-tagged, mutex-serialized line writer, backed by log/slog the way
// the teacher's logger wraps slog, but emitting the exact on-disk format
// spec.md's log sink component requires instead of JSON.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger wraps a spec-format slog handler with OpenTelemetry span
// correlation, mirroring the teacher's Logger/Tracer pairing.
type Logger struct {
	slogger *slog.Logger
	tracer  trace.Tracer
	closer  io.Closer
}

// New opens the append-only log file at path and returns a Logger that
// writes "[YYYY-MM-DD HH:MM:SS] [LEVEL] message" lines to it, flushed
// after each line, under a single mutex (spec 4.I, 5). service names the
// OpenTelemetry tracer used for span correlation.
func New(path, service string) (*Logger, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	handler := newLineHandler(f)
	return &Logger{
		slogger: slog.New(handler),
		tracer:  otel.Tracer(service),
		closer:  f,
	}, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *Logger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.logWithTrace(ctx, slog.LevelDebug, msg, attrs...)
}

func (l *Logger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.logWithTrace(ctx, slog.LevelInfo, msg, attrs...)
}

func (l *Logger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.logWithTrace(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at ERROR and, when a recording span is present, marks it
// failed and records err on it.
func (l *Logger) Error(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
	}
	l.logWithTrace(ctx, slog.LevelError, msg, attrs...)
}

// Fatal logs at the FATAL level (mapped onto a level above slog's built-in
// range) but, unlike the teacher's Fatal, does not call os.Exit: component
// G is the only caller that treats a startup failure as fatal, and it
// decides the process exit code itself after the log line is flushed.
func (l *Logger) Fatal(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.slogger.LogAttrs(ctx, levelFatal, msg, attrs...)
}

func (l *Logger) logWithTrace(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	l.slogger.LogAttrs(ctx, level, msg, attrs...)
}

// StartSpan starts a new span under this logger's tracer.
func (l *Logger) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// levelFatal maps the spec's FATAL level onto an slog.Level above Error,
// since slog has no built-in Fatal level.
const levelFatal = slog.Level(12)

func levelTag(l slog.Level) string {
	switch {
	case l >= levelFatal:
		return "FATAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// lineHandler is an slog.Handler that renders records as
// "[YYYY-MM-DD HH:MM:SS] [LEVEL] message attr=value ...", serialized by one
// mutex guarding the full write+flush region (spec 5: "Log sink: one mutex
// for the full write+flush region").
type lineHandler struct {
	mu   *sync.Mutex
	w    io.Writer
	attr []slog.Attr
}

func newLineHandler(w io.Writer) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, w: w}
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	var b []byte
	b = append(b, '[')
	b = r.Time.AppendFormat(b, "2006-01-02 15:04:05")
	b = append(b, "] ["...)
	b = append(b, levelTag(r.Level)...)
	b = append(b, "] "...)
	b = append(b, r.Message...)

	for _, a := range h.attr {
		b = appendAttr(b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		b = appendAttr(b, a)
		return true
	})
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b)
	if f, ok := h.w.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
	return err
}

func appendAttr(b []byte, a slog.Attr) []byte {
	b = append(b, ' ')
	b = append(b, a.Key...)
	b = append(b, '=')
	b = append(b, a.Value.String()...)
	return b
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attr)+len(attrs))
	merged = append(merged, h.attr...)
	merged = append(merged, attrs...)
	return &lineHandler{mu: h.mu, w: h.w, attr: merged}
}

func (h *lineHandler) WithGroup(string) slog.Handler {
	// Groups are not represented in the flat line format; spec.md's sink
	// has no concept of nested attribute groups.
	return h
}
