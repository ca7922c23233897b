// Package middleware wraps the API router with request instrumentation.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/churn-api/internal/metrics"
)

// UnmatchedRoute labels requests that no registered pattern serves.
const UnmatchedRoute = "unmatched"

// Router resolves the pattern that will serve a request.
// *http.ServeMux satisfies it.
type Router interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// statusRecorder remembers the status code a handler sent. A handler that
// writes a body without calling WriteHeader has sent 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wrote {
		s.status = code
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wrote {
		s.status = http.StatusOK
		s.wrote = true
	}
	return s.ResponseWriter.Write(b)
}

// Logging logs every request served by next and, when m is non-nil,
// counts it under the route pattern routes resolves it to ("POST /predict").
// Requests are labelled by pattern, never by raw path.
func Logging(logger *slog.Logger, routes Router, m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			route := UnmatchedRoute
			if _, pattern := routes.Handler(r); pattern != "" {
				route = pattern
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			if m != nil {
				m.ObserveRequest(route, rec.status, elapsed)
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "handled request",
				slog.String("route", route),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
