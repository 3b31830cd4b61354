package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage"
)

// BanStatusHandler reports whether the caller's IP is banned. Checking
// the status of an expired temporary ban deletes it as a side effect.
func BanStatusHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		status, err := database.CheckBanStatus(db, getClientIP(r))
		if err != nil {
			slog.Error("failed to check ban status", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, status)
	}
}

// StatsHandler returns public aggregate counts.
func StatsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		totalFiles, err := database.CountFiles(db)
		if err != nil {
			slog.Error("failed to count files", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		totalUsers, err := database.CountUsers(db)
		if err != nil {
			slog.Error("failed to count users", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		totalBytes, err := database.TotalFileBytes(db)
		if err != nil {
			slog.Error("failed to sum file sizes", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, models.StatsResponse{
			TotalFiles:        totalFiles,
			TotalUsers:        totalUsers,
			TotalStorageBytes: totalBytes,
			TotalStorageHuman: humanize.Bytes(uint64(totalBytes)),
		})
	}
}

// HealthHandler reports service health including database and storage
// reachability.
func HealthHandler(db *sql.DB, store storage.Backend, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		resp := models.HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Database:      "ok",
			Storage:       "ok",
		}
		status := http.StatusOK

		if err := db.Ping(); err != nil {
			slog.Error("health check: database unreachable", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			if n, err := database.CountFiles(db); err == nil {
				resp.TotalFiles = n
			}
			if b, err := database.TotalFileBytes(db); err == nil {
				resp.StorageUsedBytes = b
			}
		}

		if err := store.HealthCheck(r.Context()); err != nil {
			slog.Error("health check: storage unreachable", "error", err)
			resp.Status = "degraded"
			resp.Storage = "unreachable"
			status = http.StatusServiceUnavailable
		}

		sendJSON(w, status, resp)
	}
}
