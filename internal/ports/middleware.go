package ports

import (
	"net/http"

	"github.com/Amund211/liveops/internal/ratelimiting"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Reject requests the limiter doesn't admit. limiterName labels the rejection metric.
func NewRateLimitMiddleware(limiterName string, rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				metrics.rateLimitedCount.Add(r.Context(), 1, metric.WithAttributes(attribute.String("limiter", limiterName)))
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// Wrap handlers so the first middleware sees the request first. Nil middlewares are skipped.
func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			h = middlewares[i](h)
		}
		return h
	}
}
