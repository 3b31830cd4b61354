package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    filesize INTEGER NOT NULL,
    mime_type TEXT NOT NULL DEFAULT 'application/octet-stream',
    uploader_id TEXT,
    uploader_username TEXT,
    upload_date TEXT NOT NULL,
    delete_at TEXT,
    delete_duration TEXT NOT NULL DEFAULT '30days',
    download_count INTEGER NOT NULL DEFAULT 0,
    unique_visitors TEXT NOT NULL DEFAULT '[]',
    storage_path TEXT,
    uses_storage INTEGER NOT NULL DEFAULT 0,
    file_data TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_delete_at ON files(delete_at);
CREATE INDEX IF NOT EXISTS idx_files_uploader ON files(uploader_id);

CREATE TABLE IF NOT EXISTS file_chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    data TEXT NOT NULL,
    UNIQUE(file_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    email TEXT,
    is_verified INTEGER NOT NULL DEFAULT 0,
    verification_code TEXT,
    verification_email_count INTEGER NOT NULL DEFAULT 0,
    verification_email_last_sent TEXT,
    reset_token TEXT,
    reset_token_expires TEXT,
    reset_email_count INTEGER NOT NULL DEFAULT 0,
    reset_email_last_sent TEXT,
    created_at TEXT NOT NULL,
    last_activity TEXT NOT NULL,
    ip_address TEXT
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity);

CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    ip_address TEXT,
    user_agent TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS rate_limits (
    ip TEXT PRIMARY KEY,
    uploads TEXT NOT NULL DEFAULT '[]',
    banned_until TEXT,
    permanent_ban INTEGER NOT NULL DEFAULT 0,
    ban_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ip_bans (
    ip_address TEXT PRIMARY KEY,
    is_permanent INTEGER NOT NULL DEFAULT 0,
    banned_until TEXT,
    reason TEXT NOT NULL DEFAULT '',
    banned_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS error_logs (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT 'error',
    error_type TEXT NOT NULL,
    error_message TEXT NOT NULL,
    error_stack TEXT,
    route TEXT,
    method TEXT,
    user_id TEXT,
    ip_address TEXT,
    user_agent TEXT,
    request_body TEXT,
    context TEXT,
    resolved INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_error_logs_resolved ON error_logs(resolved, timestamp);
`

// Initialize opens the SQLite database and creates the schema.
func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// RunMigrations creates the schema. Safe to run repeatedly; tests call it
// against in-memory databases.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Timestamps are stored as RFC3339 UTC strings so they sort lexically and
// round-trip without driver-specific behavior.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Older rows were written without sub-second precision.
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
