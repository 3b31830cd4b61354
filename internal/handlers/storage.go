package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/utils"
)

// StorageUploadHandler accepts object bytes for the filesystem backend.
//
// Signed upload URLs minted by the filesystem backend point here. The
// HMAC token covers the object key and expiry, so the endpoint needs no
// session; possession of an unexpired token is the authorization.
func StorageUploadHandler(cfg *config.Config, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		// The backend escapes the key with url.PathEscape when minting the
		// URL, and r.URL.Path is already decoded by the server. Decode the
		// escaped form once so keys containing % survive the round trip.
		rawKey := strings.TrimPrefix(r.URL.EscapedPath(), "/api/storage/upload/")
		key, err := url.PathUnescape(rawKey)
		if err != nil || key == "" {
			sendError(w, "Invalid object key", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		expires := r.URL.Query().Get("expires")
		token := r.URL.Query().Get("token")
		if !utils.VerifyStorageUpload(cfg.StorageSecret, key, expires, token, time.Now()) {
			slog.Warn("storage upload rejected, bad or expired token",
				"key", key, "ip", getClientIP(r))
			sendError(w, "Invalid or expired upload credential", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxFileSize)
		if err := store.Store(r.Context(), key, r.Body, 0); err != nil {
			slog.Error("failed to store object", "error", err, "key", key)
			sendError(w, "Failed to store object", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("object stored via signed upload", "key", key, "ip", getClientIP(r))
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
