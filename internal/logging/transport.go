package logging

import (
	"log/slog"
	"net/http"
	"time"
)

type loggingTransport struct {
	base    http.RoundTripper
	nowFunc func() time.Time
}

// Wrap an http.RoundTripper, logging every outbound request with the logger from the request context
func NewTransport(base http.RoundTripper, nowFunc func() time.Time) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, nowFunc: nowFunc}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	logger := FromContext(ctx).With(
		slog.String("outboundMethod", req.Method),
		slog.String("outboundHost", req.URL.Host),
		slog.String("outboundPath", req.URL.Path),
	)

	start := t.nowFunc()
	resp, err := t.base.RoundTrip(req)
	duration := t.nowFunc().Sub(start)

	if err != nil {
		logger.WarnContext(ctx, "Outbound request failed", "error", err.Error(), "durationMs", duration.Milliseconds())
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "Outbound request", "statusCode", resp.StatusCode, "durationMs", duration.Milliseconds())

	return resp, nil
}
