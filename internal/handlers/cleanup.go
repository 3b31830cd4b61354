package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/driftware/driftbox/internal/cleanup"
	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/metrics"
)

// CleanupHandler triggers the retention sweep. The caller authenticates
// with a bearer token matched against the configured secret; a mismatch
// rejects before any work happens.
func CleanupHandler(cfg *config.Config, sweeper *cleanup.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if !cfg.CleanupConfigured() {
			sendError(w, "Cleanup trigger is not configured", "NOT_CONFIGURED", http.StatusServiceUnavailable)
			return
		}

		auth := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CleanupSecret)) != 1 {
			slog.Warn("cleanup trigger rejected", "ip", getClientIP(r))
			sendError(w, "Invalid cleanup token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		summary := sweeper.Sweep(r.Context())

		metrics.CleanupDeletionsTotal.WithLabelValues("expired_files").Add(float64(summary.DeletedFiles))
		metrics.CleanupDeletionsTotal.WithLabelValues("orphaned_files").Add(float64(summary.DeletedOrphanedFiles))
		metrics.CleanupDeletionsTotal.WithLabelValues("inactive_accounts").Add(float64(summary.DeletedAccounts))
		metrics.CleanupDeletionsTotal.WithLabelValues("error_logs").Add(float64(summary.DeletedErrorLogs))

		sendJSON(w, http.StatusOK, summary)
	}
}
