package handlers

import (
	"database/sql"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/models"
	"github.com/dustin/go-humanize"
)

var shareTemplate = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Filename}} · driftbox</title>
  <meta property="og:site_name" content="driftbox">
  <meta property="og:title" content="{{.Filename}}">
  <meta property="og:description" content="{{.Description}}">
  <meta property="og:url" content="{{.ShareURL}}">
{{- if .IsImage}}
  <meta property="og:type" content="website">
  <meta property="og:image" content="{{.DownloadURL}}">
  <meta name="twitter:card" content="summary_large_image">
  <meta name="twitter:image" content="{{.DownloadURL}}">
{{- else if .IsVideo}}
  <meta property="og:type" content="video.other">
  <meta property="og:video" content="{{.DownloadURL}}">
  <meta property="og:video:type" content="{{.MimeType}}">
  <meta name="twitter:card" content="player">
{{- else if .IsAudio}}
  <meta property="og:type" content="music.song">
  <meta property="og:audio" content="{{.DownloadURL}}">
  <meta name="twitter:card" content="summary">
{{- else}}
  <meta property="og:type" content="website">
  <meta name="twitter:card" content="summary">
{{- end}}
  <style>
    :root { color-scheme: dark; }
    body { font-family: system-ui, sans-serif; background: #14161a; color: #e4e6eb; max-width: 640px; margin: 3rem auto; padding: 0 1rem; }
    .card { background: #1c2026; border-radius: 12px; padding: 1.5rem; }
    .name { font-size: 1.25rem; font-weight: 600; word-break: break-all; }
    .meta { color: #8a8f98; margin: .5rem 0 1.25rem; }
    a.button { display: inline-block; background: #2563eb; color: #fff; text-decoration: none; border-radius: 8px; padding: .6rem 1.2rem; }
    img, video { max-width: 100%; border-radius: 8px; margin-top: 1.25rem; }
    a { color: #6ea8fe; }
    footer { margin-top: 2rem; font-size: .85rem; color: #8a8f98; }
  </style>
</head>
<body>
  <div class="card">
    <div class="name">{{.Filename}}</div>
    <div class="meta">{{.Description}}</div>
    <a class="button" href="{{.DownloadURL}}">Download</a>
{{- if .IsImage}}
    <img src="{{.DownloadURL}}" alt="{{.Filename}}">
{{- else if .IsVideo}}
    <video src="{{.DownloadURL}}" controls></video>
{{- else if .IsAudio}}
    <audio src="{{.DownloadURL}}" controls></audio>
{{- end}}
  </div>
  <footer><a href="/">Upload your own files on driftbox</a></footer>
</body>
</html>
`))

type sharePage struct {
	Filename    string
	MimeType    string
	Description string
	ShareURL    string
	DownloadURL string
	IsImage     bool
	IsVideo     bool
	IsAudio     bool
}

// ShareHandler serves the landing page for share links like /{fileID}.png.
// The OpenGraph tags let chat clients embed image, video, and audio files
// inline. Anything that is not a live file ID falls through to the web UI.
func ShareHandler(db *sql.DB, cfg *config.Config, fallback http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := shareFileID(r.URL.Path)
		if !ok {
			fallback.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		file, err := getLiveFile(db, id)
		if err != nil {
			slog.Error("Failed to look up shared file", "file_id", id, "error", err)
			sendError(w, "Failed to load file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if file == nil {
			fallback.ServeHTTP(w, r)
			return
		}

		base := strings.TrimSuffix(cfg.PublicURL, "/")
		if base == "" {
			base = getScheme(r) + "://" + getHost(r)
		}

		page := sharePage{
			Filename:    file.Filename,
			MimeType:    file.MimeType,
			Description: shareDescription(file),
			ShareURL:    buildShareURL(r, cfg, file.ID, file.Filename),
			DownloadURL: base + "/api/files/" + file.ID + "/download",
			IsImage:     strings.HasPrefix(file.MimeType, "image/"),
			IsVideo:     strings.HasPrefix(file.MimeType, "video/"),
			IsAudio:     strings.HasPrefix(file.MimeType, "audio/"),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := shareTemplate.Execute(w, page); err != nil {
			slog.Error("Failed to render share page", "file_id", id, "error", err)
		}
	})
}

// shareFileID extracts the file ID from a share path. Share paths are a
// single segment holding the 8-character ID plus an optional extension.
func shareFileID(path string) (string, bool) {
	name := strings.TrimPrefix(path, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	id, _, _ := strings.Cut(name, ".")
	if len(id) != 8 {
		return "", false
	}
	for _, c := range id {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return "", false
		}
	}
	return id, true
}

func shareDescription(file *models.File) string {
	desc := humanize.Bytes(uint64(file.FileSize))
	if file.DeleteAt != nil {
		desc += " · expires " + humanize.Time(*file.DeleteAt)
	}
	if file.UploaderUsername != nil {
		desc += fmt.Sprintf(" · uploaded by %s", *file.UploaderUsername)
	}
	return desc
}
