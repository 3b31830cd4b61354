package utils

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the client IP address from a request. It prefers
// X-Forwarded-For (first hop), then X-Real-IP, then the connection's
// remote address. The server is expected to sit behind a trusted proxy
// that sets these headers.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the originating client
		if i := strings.Index(xff, ","); i >= 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
