// Package errorlog persists diagnostic records for admin review.
//
// Writes are fire-and-forget: a failure to persist an entry is logged
// and swallowed, never surfaced to the request that triggered it.
package errorlog

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/metrics"
	"github.com/driftware/driftbox/internal/models"
)

// redactedFields are JSON keys whose values are masked before a request
// body is persisted.
var redactedFields = []string{"password", "newPassword", "currentPassword", "token", "code"}

// Logger records error entries against the database.
type Logger struct {
	db *sql.DB
}

// New creates a Logger over db.
func New(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Capture persists an entry, filling in the stack trace. Failures are
// logged and dropped.
func (l *Logger) Capture(entry *models.ErrorLogEntry) {
	if entry.Stack == "" {
		entry.Stack = string(debug.Stack())
	}
	metrics.ErrorsTotal.WithLabelValues(entry.ErrorType).Inc()
	if err := database.InsertErrorLog(l.db, entry); err != nil {
		slog.Error("failed to persist error log entry",
			"error", err,
			"error_type", entry.ErrorType,
		)
	}
}

// CaptureError is a convenience for recording err against a named
// component with optional context.
func (l *Logger) CaptureError(errType string, err error, context map[string]any) {
	l.Capture(&models.ErrorLogEntry{
		Severity:  models.SeverityError,
		ErrorType: errType,
		Message:   err.Error(),
		Context:   context,
	})
}

// CaptureRequest records err with route, method, client IP, and a
// redacted copy of the request body taken from the given raw bytes.
func (l *Logger) CaptureRequest(errType string, err error, r *http.Request, clientIP string, body []byte, userID *string) {
	entry := &models.ErrorLogEntry{
		Severity:  models.SeverityError,
		ErrorType: errType,
		Message:   err.Error(),
		Route:     r.URL.Path,
		Method:    r.Method,
		UserID:    userID,
		IPAddress: &clientIP,
	}
	if ua := r.UserAgent(); ua != "" {
		entry.UserAgent = &ua
	}
	if redacted := RedactBody(body); redacted != "" {
		entry.RequestBody = &redacted
	}
	l.Capture(entry)
}

// RedactBody masks sensitive JSON fields in a request body. Non-JSON
// bodies are dropped entirely rather than stored raw.
func RedactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}

	for _, field := range redactedFields {
		if _, ok := decoded[field]; ok {
			decoded[field] = "[REDACTED]"
		}
	}

	redacted, err := json.Marshal(decoded)
	if err != nil {
		return ""
	}
	return string(redacted)
}
