package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsRecorder receives one observation per completed request.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// contextMetricsRecorder is an optional upgrade a recorder can implement
// to receive the request context, e.g. for trace correlation.
type contextMetricsRecorder interface {
	RecordHTTPRequestWithContext(ctx context.Context, method, path, status string, duration time.Duration)
}

func record(ctx context.Context, rec MetricsRecorder, method, path, status string, duration time.Duration) {
	if cr, ok := rec.(contextMetricsRecorder); ok {
		cr.RecordHTTPRequestWithContext(ctx, method, path, status, duration)
		return
	}
	rec.RecordHTTPRequest(method, path, status, duration)
}

// Metrics observes request counts, latency and in-flight connections.
// The scrape endpoint and swagger assets are not measured. A panicking
// handler is still recorded as a 500 before the panic continues up to
// the recovery middleware.
func Metrics(rec MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") || strings.HasPrefix(r.URL.Path, "/swagger") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec.IncActiveConnections()
			defer rec.DecActiveConnections()

			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				if v := recover(); v != nil {
					wrapped.statusCode = http.StatusInternalServerError
					record(r.Context(), rec, r.Method, normalizePath(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
					panic(v)
				}
			}()

			next.ServeHTTP(wrapped, r)

			record(r.Context(), rec, r.Method, normalizePath(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}

// metricsResponseWriter captures the first status code a handler sends.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// normalizePath collapses uuid and numeric path segments to ":id" so
// run ids do not explode label cardinality.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = ":id"
			continue
		}
		if _, err := strconv.Atoi(part); err == nil && len(part) > 0 {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
