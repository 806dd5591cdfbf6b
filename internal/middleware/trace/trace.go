// Package trace logs each HTTP request and records its latency and status
// by route pattern.
package trace

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meurenda/internal/log"
	"meurenda/internal/metrics"
)

// Middleware traces requests. clientIP resolves the caller address for the
// log line and may be nil.
type Middleware struct {
	clientIP func(*http.Request) string
	logger   *log.Logger
}

func NewMiddleware(logger *log.Logger, clientIP func(*http.Request) string) *Middleware {
	return &Middleware{
		clientIP: clientIP,
		logger:   logger.WithComponent(log.ComponentHTTP),
	}
}

// Handler wraps next. It must run inside a chi router so the route pattern
// is known once the request has been served.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := ""
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}
		ctx := r.Context()
		sl := log.NewStructuredLogger(m.logger.With(log.FieldRequestID, RequestID(r)))
		sl.LogHTTPStart(ctx, r, ip)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := RoutePattern(r)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		sl.LogHTTPEnd(ctx, r, status, duration.Milliseconds(), ip)
	})
}

// RoutePattern returns the matched chi pattern, or "unmatched" so unknown
// paths do not create unbounded label values.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RequestID returns the chi request ID of r, "" when none was assigned.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

