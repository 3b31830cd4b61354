package handlers

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/metrics"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/utils"
)

// FilesHandler dispatches /api/files/{id} and /api/files/{id}/download.
func FilesHandler(db *sql.DB, cfg *config.Config, store storage.Backend, errLog *errorlog.Logger) http.HandlerFunc {
	info := fileInfo(db, cfg)
	download := downloadFile(db, cfg, store, errLog)
	del := deleteFile(db, store)

	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
		parts := strings.Split(rest, "/")

		switch {
		case len(parts) == 1 && parts[0] != "":
			switch r.Method {
			case http.MethodGet:
				info(w, r, parts[0])
			case http.MethodDelete:
				del(w, r, parts[0])
			default:
				sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			}
		case len(parts) == 2 && parts[1] == "download":
			if r.Method != http.MethodGet {
				sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
				return
			}
			download(w, r, parts[0])
		default:
			sendError(w, "Not found", "NOT_FOUND", http.StatusNotFound)
		}
	}
}

// getLiveFile loads a file and filters out expired records. Expiry is
// enforced at read time; the cleanup sweep deletes the rows later.
func getLiveFile(db *sql.DB, id string) (*models.File, error) {
	file, err := database.GetFileByID(db, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}
	if file.DeleteAt != nil && !file.DeleteAt.After(time.Now()) {
		return nil, nil
	}
	return file, nil
}

func fileInfo(db *sql.DB, cfg *config.Config) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, id string) {
		file, err := getLiveFile(db, id)
		if err != nil {
			slog.Error("failed to load file", "error", err, "file_id", id)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if file == nil {
			sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		base := strings.TrimSuffix(cfg.PublicURL, "/")
		if base == "" {
			base = getScheme(r) + "://" + getHost(r)
		}

		sendJSON(w, http.StatusOK, models.FileInfo{
			ID:               file.ID,
			Filename:         file.Filename,
			FileSize:         file.FileSize,
			FileSizeHuman:    humanize.Bytes(uint64(file.FileSize)),
			MimeType:         file.MimeType,
			UploaderUsername: file.UploaderUsername,
			CreatedAt:        file.CreatedAt,
			DeleteAt:         file.DeleteAt,
			DownloadCount:    file.DownloadCount,
			DownloadURL:      base + "/api/files/" + file.ID + "/download",
		})
	}
}

func downloadFile(db *sql.DB, cfg *config.Config, store storage.Backend, errLog *errorlog.Logger) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, id string) {
		file, err := getLiveFile(db, id)
		if err != nil {
			slog.Error("failed to load file", "error", err, "file_id", id)
			metrics.DownloadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if file == nil {
			metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
			sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		// Best-effort bookkeeping, never blocks the download
		ip := getClientIP(r)
		if err := database.IncrementDownloadCount(db, file.ID); err != nil {
			slog.Error("failed to increment download count", "error", err, "file_id", file.ID)
		}
		if err := database.AddUniqueVisitor(db, file.ID, ip); err != nil {
			slog.Error("failed to record visitor", "error", err, "file_id", file.ID)
		}

		disposition := contentDisposition(file)

		// Storage-backed files redirect to the object store when the
		// backend supports it, keeping large transfers off this process.
		if file.UsesStorage && file.StoragePath != "" {
			expiry := time.Duration(cfg.DownloadRedirect) * time.Second
			redirectURL, err := store.PresignDownload(r.Context(), file.StoragePath, disposition, expiry)
			if err != nil {
				slog.Error("failed to presign download", "error", err, "file_id", file.ID)
				errLog.CaptureError("presign_download", err, map[string]any{"file_id": file.ID})
				metrics.DownloadsTotal.WithLabelValues("failure").Inc()
				sendError(w, "Storage service unavailable", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}
			if redirectURL != "" {
				metrics.DownloadsTotal.WithLabelValues("success").Inc()
				http.Redirect(w, r, redirectURL, http.StatusFound)
				return
			}

			// Local backend: stream the object directly
			rc, err := store.Retrieve(r.Context(), file.StoragePath)
			if err != nil {
				slog.Error("failed to retrieve object", "error", err, "file_id", file.ID)
				errLog.CaptureError("download_retrieve", err, map[string]any{"file_id": file.ID})
				metrics.DownloadsTotal.WithLabelValues("failure").Inc()
				sendError(w, "Storage service unavailable", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}
			defer rc.Close()

			w.Header().Set("Content-Type", file.MimeType)
			w.Header().Set("Content-Disposition", disposition)
			w.Header().Set("Content-Length", fmt.Sprintf("%d", file.FileSize))
			if _, err := io.Copy(w, rc); err != nil {
				slog.Error("download stream interrupted", "error", err, "file_id", file.ID)
			}
			metrics.DownloadsTotal.WithLabelValues("success").Inc()
			return
		}

		// Legacy inline payload
		if file.InlineData != "" {
			data, err := base64.StdEncoding.DecodeString(file.InlineData)
			if err != nil {
				slog.Error("failed to decode inline payload", "error", err, "file_id", file.ID)
				errLog.CaptureError("download_inline_decode", err, map[string]any{"file_id": file.ID})
				metrics.DownloadsTotal.WithLabelValues("failure").Inc()
				sendError(w, "File data corrupted", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}
			serveBytes(w, file, disposition, data)
			metrics.DownloadsTotal.WithLabelValues("success").Inc()
			return
		}

		// Legacy chunked payload
		chunks, err := database.GetChunks(db, file.ID)
		if err != nil || len(chunks) == 0 {
			if err != nil {
				slog.Error("failed to load chunks", "error", err, "file_id", file.ID)
				errLog.CaptureError("download_chunks", err, map[string]any{"file_id": file.ID})
			}
			metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
			sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		var assembled []byte
		for i, chunk := range chunks {
			data, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				slog.Error("failed to decode chunk", "error", err, "file_id", file.ID, "chunk", i)
				errLog.CaptureError("download_chunk_decode", err,
					map[string]any{"file_id": file.ID, "chunk": i})
				metrics.DownloadsTotal.WithLabelValues("failure").Inc()
				sendError(w, "File data corrupted", "DEPENDENCY_ERROR", http.StatusInternalServerError)
				return
			}
			assembled = append(assembled, data...)
		}

		serveBytes(w, file, disposition, assembled)
		metrics.DownloadsTotal.WithLabelValues("success").Inc()
	}
}

func deleteFile(db *sql.DB, store storage.Backend) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, id string) {
		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		file, err := database.GetFileByID(db, id)
		if err != nil {
			slog.Error("failed to load file", "error", err, "file_id", id)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if file == nil {
			sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		if file.UploaderID == nil || *file.UploaderID != user.ID {
			sendError(w, "You do not own this file", "FORBIDDEN", http.StatusForbidden)
			return
		}

		if file.UsesStorage && file.StoragePath != "" {
			if err := store.Delete(r.Context(), file.StoragePath); err != nil {
				slog.Warn("failed to delete storage object",
					"file_id", file.ID, "key", file.StoragePath, "error", err)
			}
		}

		if err := database.DeleteFile(db, file.ID); err != nil {
			slog.Error("failed to delete file record", "error", err, "file_id", file.ID)
			sendError(w, "Failed to delete file", "DEPENDENCY_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("file deleted by owner", "file_id", file.ID, "user_id", user.ID)
		sendJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// UserFilesHandler lists the authenticated user's uploads.
func UserFilesHandler(db *sql.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFrom(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		files, err := database.ListFilesByUploader(db, user.ID)
		if err != nil {
			slog.Error("failed to list user files", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		type fileItem struct {
			ID            string     `json:"id"`
			Filename      string     `json:"filename"`
			FileSize      int64      `json:"filesize"`
			FileSizeHuman string     `json:"filesize_human"`
			MimeType      string     `json:"mime_type"`
			CreatedAt     time.Time  `json:"upload_date"`
			DeleteAt      *time.Time `json:"delete_at"`
			DownloadCount int        `json:"download_count"`
			URL           string     `json:"url"`
		}

		items := make([]fileItem, 0, len(files))
		for _, f := range files {
			items = append(items, fileItem{
				ID:            f.ID,
				Filename:      f.Filename,
				FileSize:      f.FileSize,
				FileSizeHuman: humanize.Bytes(uint64(f.FileSize)),
				MimeType:      f.MimeType,
				CreatedAt:     f.CreatedAt,
				DeleteAt:      f.DeleteAt,
				DownloadCount: f.DownloadCount,
				URL:           buildShareURL(r, cfg, f.ID, f.Filename),
			})
		}

		sendJSON(w, http.StatusOK, map[string]any{"files": items})
	}
}

// contentDisposition picks inline rendering for media the browser (and
// link-preview fetchers) can display natively, attachment otherwise.
func contentDisposition(file *models.File) string {
	mode := "attachment"
	switch {
	case strings.HasPrefix(file.MimeType, "image/"),
		strings.HasPrefix(file.MimeType, "video/"),
		strings.HasPrefix(file.MimeType, "audio/"):
		mode = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", mode, utils.SanitizeForContentDisposition(file.Filename))
}

func serveBytes(w http.ResponseWriter, file *models.File, disposition string, data []byte) {
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Write(data)
}
