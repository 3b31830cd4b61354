package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid
// cardinality explosion. Dynamic segments become placeholders.
func normalizePath(path string) string {
	switch {
	case path == "/health":
		return "/health"
	case path == "/metrics":
		return "/metrics"
	case path == "/api/files/get-upload-url":
		return "/api/files/get-upload-url"
	case path == "/api/files/finalize-upload":
		return "/api/files/finalize-upload"
	case path == "/api/ban-status":
		return "/api/ban-status"
	case path == "/api/stats":
		return "/api/stats"
	case path == "/api/cleanup":
		return "/api/cleanup"

	case strings.HasPrefix(path, "/api/storage/upload/"):
		return "/api/storage/upload/:key"

	case strings.HasPrefix(path, "/api/files/"):
		if strings.HasSuffix(path, "/download") {
			return "/api/files/:id/download"
		}
		return "/api/files/:id"

	case strings.HasPrefix(path, "/api/auth/"):
		return "/api/auth/*"

	case strings.HasPrefix(path, "/api/user/"):
		return "/api/user/*"

	case strings.HasPrefix(path, "/api/admin/"):
		return "/api/admin/*"

	default:
		return "/other"
	}
}
