package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage"
)

// AdminUsersHandler lists accounts and deletes them.
// GET /api/admin/users, DELETE /api/admin/users/{id}
func AdminUsersHandler(db *sql.DB, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/admin/users")
		rest = strings.TrimPrefix(rest, "/")

		switch {
		case r.Method == http.MethodGet && rest == "":
			users, err := database.ListUsers(db)
			if err != nil {
				slog.Error("failed to list users", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			sendJSON(w, http.StatusOK, map[string]any{"users": users})

		case r.Method == http.MethodDelete && rest != "":
			admin, _ := middleware.UserFrom(r.Context())
			if admin != nil && admin.ID == rest {
				sendError(w, "Cannot delete the admin account", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}

			user, err := database.GetUserByID(db, rest)
			if err != nil {
				slog.Error("failed to load user", "error", err, "user_id", rest)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if user == nil {
				sendError(w, "User not found", "NOT_FOUND", http.StatusNotFound)
				return
			}

			files, err := database.DeleteUserCascade(db, user.ID)
			if err != nil {
				slog.Error("failed to delete user", "error", err, "user_id", user.ID)
				sendError(w, "Failed to delete user", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}
			for _, f := range files {
				if f.UsesStorage && f.StoragePath != "" {
					if err := store.Delete(r.Context(), f.StoragePath); err != nil {
						slog.Warn("failed to delete storage object",
							"file_id", f.ID, "key", f.StoragePath, "error", err)
					}
				}
			}

			slog.Info("user deleted by admin",
				"user_id", user.ID, "username", user.Username, "files_removed", len(files))
			sendJSON(w, http.StatusOK, map[string]any{
				"success":       true,
				"files_removed": len(files),
			})

		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}

// AdminFilesHandler lists and deletes files.
// GET /api/admin/files, DELETE /api/admin/files/{id}
func AdminFilesHandler(db *sql.DB, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/admin/files")
		rest = strings.TrimPrefix(rest, "/")

		switch {
		case r.Method == http.MethodGet && rest == "":
			limit := 200
			if l := r.URL.Query().Get("limit"); l != "" {
				if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
					limit = n
				}
			}

			files, err := database.ListFiles(db, limit)
			if err != nil {
				slog.Error("failed to list files", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			sendJSON(w, http.StatusOK, map[string]any{"files": files})

		case r.Method == http.MethodDelete && rest != "":
			file, err := database.GetFileByID(db, rest)
			if err != nil {
				slog.Error("failed to load file", "error", err, "file_id", rest)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if file == nil {
				sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
				return
			}

			if file.UsesStorage && file.StoragePath != "" {
				if err := store.Delete(r.Context(), file.StoragePath); err != nil {
					slog.Warn("failed to delete storage object",
						"file_id", file.ID, "key", file.StoragePath, "error", err)
				}
			}
			if err := database.DeleteFile(db, file.ID); err != nil {
				slog.Error("failed to delete file", "error", err, "file_id", file.ID)
				sendError(w, "Failed to delete file", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}

			slog.Info("file deleted by admin", "file_id", file.ID)
			sendJSON(w, http.StatusOK, map[string]bool{"success": true})

		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}

// AdminBanHandler bans and unbans IPs.
// PUT /api/admin/ban, DELETE /api/admin/ban?ip=...
func AdminBanHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var req struct {
				IP            string `json:"ip"`
				DurationHours int    `json:"durationHours"`
				Permanent     bool   `json:"permanent"`
				Reason        string `json:"reason"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" {
				sendError(w, "ip is required", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
			if !req.Permanent && req.DurationHours <= 0 {
				sendError(w, "durationHours must be positive for temporary bans", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}

			admin, _ := middleware.UserFrom(r.Context())
			ban := &models.IPBan{
				IPAddress:   req.IP,
				IsPermanent: req.Permanent,
				Reason:      req.Reason,
				CreatedAt:   time.Now(),
			}
			if admin != nil {
				ban.BannedBy = admin.Username
			}
			if !req.Permanent {
				until := time.Now().Add(time.Duration(req.DurationHours) * time.Hour)
				ban.BannedUntil = &until
			}

			if err := database.UpsertIPBan(db, ban); err != nil {
				slog.Error("failed to ban IP", "error", err, "ip", req.IP)
				sendError(w, "Failed to ban IP", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}

			slog.Info("IP banned", "ip", req.IP, "permanent", req.Permanent, "by", ban.BannedBy)
			sendJSON(w, http.StatusOK, map[string]bool{"success": true})

		case http.MethodDelete:
			ip := r.URL.Query().Get("ip")
			if ip == "" {
				sendError(w, "ip query parameter is required", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
			if err := database.DeleteIPBan(db, ip); err != nil {
				slog.Error("failed to unban IP", "error", err, "ip", ip)
				sendError(w, "Failed to unban IP", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}
			slog.Info("IP unbanned", "ip", ip)
			sendJSON(w, http.StatusOK, map[string]bool{"success": true})

		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}

// AdminErrorsHandler lists error log entries and marks them resolved.
// GET /api/admin/errors, POST /api/admin/errors/{id}/resolve
func AdminErrorsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/admin/errors")
		rest = strings.TrimPrefix(rest, "/")

		switch {
		case r.Method == http.MethodGet && rest == "":
			unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
			limit := 100
			if l := r.URL.Query().Get("limit"); l != "" {
				if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
					limit = n
				}
			}

			entries, err := database.ListErrorLogs(db, unresolvedOnly, limit)
			if err != nil {
				slog.Error("failed to list error logs", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			sendJSON(w, http.StatusOK, map[string]any{"errors": entries})

		case r.Method == http.MethodPost && strings.HasSuffix(rest, "/resolve"):
			id := strings.TrimSuffix(rest, "/resolve")
			if id == "" {
				sendError(w, "Error log id is required", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
			if err := database.ResolveErrorLog(db, id); err != nil {
				sendError(w, "Error log not found", "NOT_FOUND", http.StatusNotFound)
				return
			}
			sendJSON(w, http.StatusOK, map[string]bool{"success": true})

		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}
