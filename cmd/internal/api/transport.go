package coyoteapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type opKey struct{}

func withOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

func opFrom(ctx context.Context) string {
	if op, ok := ctx.Value(opKey{}).(string); ok {
		return op
	}
	return "unknown"
}

// loggingTransport logs every round trip. The Authorization header is never logged.
type loggingTransport struct {
	next http.RoundTripper
	log  *slog.Logger
}

func newLoggingTransport(next http.RoundTripper, log *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, log: log}
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start)

	attrs := []any{
		"op", opFrom(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-ID"),
		"duration_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		t.log.Warn("api.request", append(attrs, "result", "transport_error", "err", err)...)
		return resp, err
	}

	level, result := requestLogMeta(resp.StatusCode)
	t.log.Log(r.Context(), level, "api.request", append(attrs,
		"status", resp.StatusCode,
		"status_class", statusClass(resp.StatusCode),
		"result", result,
	)...)
	return resp, nil
}

func requestLogMeta(status int) (slog.Level, string) {
	switch {
	case status >= 500:
		return slog.LevelError, "server_error"
	case status >= 400:
		return slog.LevelWarn, "client_error"
	case status >= 300:
		return slog.LevelInfo, "redirect"
	default:
		return slog.LevelInfo, "success"
	}
}

func statusClass(status int) string {
	switch {
	case status <= 0:
		return "transport"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
