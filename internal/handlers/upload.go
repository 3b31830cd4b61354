package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/metrics"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/ratelimit"
	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/utils"
)

// maxIDRetries bounds the collision-retry loop for file identifiers.
// At 62^8 possible identifiers a second collision in a row means the
// RNG is broken, not the keyspace exhausted.
const maxIDRetries = 5

// GetUploadURLHandler issues a signed upload credential for a new file.
// No file record is created yet; the record appears at finalize time.
func GetUploadURLHandler(db *sql.DB, cfg *config.Config, store storage.Backend, limiter *ratelimit.Limiter, errLog *errorlog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		ip := getClientIP(r)

		result, err := limiter.Check(ip)
		if err != nil {
			slog.Error("rate limit check failed", "error", err, "ip", ip)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if !result.Allowed {
			metrics.UploadSlotsTotal.WithLabelValues("rate_limited").Inc()
			sendError(w, result.Reason, "RATE_LIMITED", http.StatusTooManyRequests)
			return
		}

		var req models.UploadSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if v := utils.ValidateFilename(req.Filename); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if req.FileSize > 0 {
			if v := utils.ValidateFileSize(req.FileSize, cfg.MaxFileSize); !v.Valid {
				sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
		}

		filename := utils.SanitizeFilename(req.Filename)

		// Unique identifier with collision retry. The primary key
		// constraint at insert time is the final arbiter if two slots
		// race on the same identifier.
		var fileID string
		for i := 0; i < maxIDRetries; i++ {
			fileID, err = utils.GenerateFileID()
			if err != nil {
				slog.Error("failed to generate file id", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}

			exists, err := database.FileIDExists(db, fileID)
			if err != nil {
				slog.Error("failed to check file id", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if !exists {
				break
			}
			if i == maxIDRetries-1 {
				sendError(w, "Failed to allocate file identifier", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
		}

		storagePath := fileID + "/" + filename
		expiry := time.Duration(cfg.UploadURLExpiry) * time.Second

		signedURL, err := store.PresignUpload(r.Context(), storagePath, expiry)
		if err != nil {
			slog.Error("failed to presign upload", "error", err, "key", storagePath)
			errLog.CaptureError("presign_upload", err, map[string]any{"key": storagePath})
			metrics.UploadSlotsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Storage service unavailable", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.UploadSlotsTotal.WithLabelValues("issued").Inc()
		slog.Info("upload slot issued", "file_id", fileID, "ip", ip, "filename", filename)

		sendJSON(w, http.StatusOK, models.UploadSlotResponse{
			FileID:      fileID,
			StoragePath: storagePath,
			SignedURL:   signedURL,
			ExpiresIn:   cfg.UploadURLExpiry,
		})
	}
}

// FinalizeUploadHandler publishes an uploaded object as a shareable file.
//
// The object must already exist in storage; a client calling finalize
// without completing the transfer fails the existence check. If the
// metadata insert fails after the check, the object is deleted again so
// neither an orphaned object nor a dangling record survives.
func FinalizeUploadHandler(db *sql.DB, cfg *config.Config, store storage.Backend, limiter *ratelimit.Limiter, errLog *errorlog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		ip := getClientIP(r)

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		var req models.FinalizeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if req.FileID == "" || req.StoragePath == "" || req.Filename == "" {
			sendError(w, "fileId, storagePath and filename are required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if req.FileSize <= 0 {
			sendError(w, "filesize must be positive", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if v := utils.ValidateFileSize(req.FileSize, cfg.MaxFileSize); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if v := utils.ValidateFilename(req.Filename); !v.Valid {
			sendError(w, v.Error, "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		// The storage path is derived from the identifier at slot time;
		// a mismatched pair would let a client publish someone else's
		// pending object under their own identifier.
		if !strings.HasPrefix(req.StoragePath, req.FileID+"/") {
			sendError(w, "storagePath does not match fileId", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		var uploaderID, uploaderUsername *string
		if user, ok := middleware.UserFrom(r.Context()); ok {
			if user.Email != nil && !user.IsVerified {
				sendError(w, "Email address not verified", "FORBIDDEN", http.StatusForbidden)
				return
			}
			uploaderID = &user.ID
			uploaderUsername = &user.Username
		}

		exists, err := store.Exists(r.Context(), req.StoragePath)
		if err != nil {
			slog.Error("storage existence check failed", "error", err, "key", req.StoragePath)
			errLog.CaptureRequest("finalize_exists_check", err, r, ip, body, uploaderID)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Storage service unavailable", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}
		if !exists {
			sendError(w, "Upload incomplete: object not found in storage", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		mimeType := req.MimeType
		if mimeType == "" {
			mimeType = sniffMimeType(r, store, req.StoragePath)
		}

		now := time.Now()
		file := &models.File{
			ID:               req.FileID,
			Filename:         utils.SanitizeFilename(req.Filename),
			FileSize:         req.FileSize,
			MimeType:         mimeType,
			UploaderID:       uploaderID,
			UploaderUsername: uploaderUsername,
			CreatedAt:        now,
			DeleteAt:         utils.DeleteDuration(req.DeleteDuration, now),
			DeleteDuration:   req.DeleteDuration,
			StoragePath:      req.StoragePath,
			UsesStorage:      true,
		}

		if err := database.CreateFile(db, file); err != nil {
			// Compensate: never retain a storage object with no record
			if delErr := store.Delete(r.Context(), req.StoragePath); delErr != nil {
				slog.Error("rollback delete failed, object orphaned",
					"key", req.StoragePath, "error", delErr)
			}
			slog.Error("failed to insert file record", "error", err, "file_id", req.FileID)
			errLog.CaptureRequest("finalize_insert", err, r, ip, body, uploaderID)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Failed to save file record", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		// Count the upload against the quota only after full success so
		// abandoned transfers never penalize the client.
		if err := limiter.Record(ip); err != nil {
			slog.Error("failed to record upload against rate limit", "error", err, "ip", ip)
		}

		metrics.UploadsTotal.WithLabelValues("success").Inc()
		metrics.UploadSizeBytes.Observe(float64(req.FileSize))

		slog.Info("upload finalized",
			"file_id", file.ID,
			"size", file.FileSize,
			"mime_type", file.MimeType,
			"ip", ip,
		)

		sendJSON(w, http.StatusOK, models.FinalizeResponse{
			Success: true,
			FileID:  file.ID,
			URL:     buildShareURL(r, cfg, file.ID, file.Filename),
		})
	}
}

// sniffMimeType detects the content type from the stored object's
// leading bytes. Returns application/octet-stream when detection is
// not possible.
func sniffMimeType(r *http.Request, store storage.Backend, key string) string {
	rc, err := store.Retrieve(r.Context(), key)
	if err != nil {
		return "application/octet-stream"
	}
	defer rc.Close()

	mtype, err := mimetype.DetectReader(io.LimitReader(rc, 3072))
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
