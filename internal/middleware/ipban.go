package middleware

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/utils"
)

// IPBanMiddleware rejects requests from banned IPs. Expired temporary
// bans are cleaned up lazily by the status check itself.
func IPBanMiddleware(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.GetClientIP(r)

			status, err := database.CheckBanStatus(db, ip)
			if err != nil {
				slog.Error("failed to check ban status", "error", err, "ip", ip)
				writeError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}

			if status.Banned {
				slog.Warn("request from banned IP rejected", "ip", ip, "path", r.URL.Path)
				message := "This IP address is banned"
				if !status.IsPermanent && status.HoursRemaining > 0 {
					message = fmt.Sprintf("This IP address is banned for %d more hours", status.HoursRemaining)
				}
				writeError(w, message, "BANNED", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
