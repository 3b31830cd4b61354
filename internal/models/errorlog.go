package models

import "time"

// Severity levels for error log entries.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// ErrorLogEntry is an append-only diagnostic record. Entries are only ever
// mutated to flip Resolved, and deleted by the cleanup sweep once resolved
// and older than 30 days.
type ErrorLogEntry struct {
	ID          string // uuid
	Timestamp   time.Time
	Severity    string
	ErrorType   string
	Message     string
	Stack       string
	Route       string
	Method      string
	UserID      *string
	IPAddress   *string
	UserAgent   *string
	RequestBody *string // secrets redacted before storage
	Context     map[string]any
	Resolved    bool
}

// CleanupSummary is the sweep's only externally observable success signal.
type CleanupSummary struct {
	Success              bool      `json:"success"`
	DeletedFiles         int       `json:"deletedFiles"`
	DeletedOrphanedFiles int       `json:"deletedOrphanedFiles"`
	DeletedAccounts      int       `json:"deletedAccounts"`
	DeletedErrorLogs     int       `json:"deletedErrorLogs"`
	Timestamp            time.Time `json:"timestamp"`
}
