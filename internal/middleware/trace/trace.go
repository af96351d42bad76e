// Package trace logs and measures every HTTP request.
package trace

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ledger/internal/log"
	"ledger/internal/telemetry"
)

// Middleware logs request start and completion and feeds the HTTP collectors.
// It expects chi's RequestID and the log middleware to run first.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sl := log.NewStructuredLogger(log.FromContext(r.Context()))
		sl.LogHTTPStart(r.Context(), r, r.RemoteAddr)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := RoutePattern(r)
		elapsed := time.Since(start)

		telemetry.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		telemetry.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		sl.LogHTTPEnd(r.Context(), r, route, status, elapsed.Milliseconds(), r.RemoteAddr)
	})
}

// RoutePattern returns the matched chi pattern, keeping label cardinality
// bounded; unmatched requests are reported as "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RequestID returns the request ID chi assigned to r's context.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
