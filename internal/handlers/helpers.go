package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/utils"
)

// sendError sends a JSON error response in the API's standard shape.
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error: message,
		Code:  code,
	}

	json.NewEncoder(w).Encode(errResp)
}

// sendJSON writes v as the JSON response body with the given status.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	return utils.GetClientIP(r)
}

// buildShareURL constructs the public share URL for a file. The original
// filename's extension is appended so link-preview consumers (Discord in
// particular) can infer the media type from the URL alone.
func buildShareURL(r *http.Request, cfg *config.Config, fileID, filename string) string {
	base := cfg.PublicURL
	if base == "" {
		base = getScheme(r) + "://" + getHost(r)
	}
	base = strings.TrimSuffix(base, "/")

	ext := filepath.Ext(filename)
	return base + "/" + fileID + ext
}

// getScheme returns the scheme (http/https) respecting reverse proxy headers.
func getScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// getHost returns the host respecting reverse proxy headers.
func getHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return r.Host
}
