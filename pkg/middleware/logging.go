// Package middleware provides HTTP middleware for the registry API.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestLogger returns middleware that logs one line per completed request.
// Requests that end in a server error are logged at WARN so they stand out
// when the debug stream is filtered; health probes are not logged at all.
// Pass a nil logger to disable logging entirely.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			// Request bodies and query values may carry member personal
			// data, so only the path is logged.
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn("HTTP request failed", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

// statusRecorder captures the status code and body size a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += n
	return n, err
}
