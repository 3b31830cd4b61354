package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftware/driftbox/internal/models"
)

// InsertErrorLog appends a diagnostic record.
func InsertErrorLog(db *sql.DB, entry *models.ErrorLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityError
	}

	var contextJSON any
	if entry.Context != nil {
		encoded, err := json.Marshal(entry.Context)
		if err != nil {
			return fmt.Errorf("failed to encode context: %w", err)
		}
		contextJSON = string(encoded)
	}

	_, err := db.Exec(
		`INSERT INTO error_logs (
			id, timestamp, severity, error_type, error_message, error_stack,
			route, method, user_id, ip_address, user_agent, request_body,
			context, resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, formatTime(entry.Timestamp), entry.Severity, entry.ErrorType,
		entry.Message, entry.Stack, entry.Route, entry.Method,
		nullableString(entry.UserID), nullableString(entry.IPAddress),
		nullableString(entry.UserAgent), nullableString(entry.RequestBody),
		contextJSON, entry.Resolved)
	if err != nil {
		return fmt.Errorf("failed to insert error log: %w", err)
	}
	return nil
}

// ListErrorLogs returns up to limit entries, newest first. When
// unresolvedOnly is set, resolved entries are skipped.
func ListErrorLogs(db *sql.DB, unresolvedOnly bool, limit int) ([]*models.ErrorLogEntry, error) {
	query := `
		SELECT id, timestamp, severity, error_type, error_message, error_stack,
			route, method, user_id, ip_address, user_agent, request_body,
			context, resolved
		FROM error_logs
	`
	if unresolvedOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ErrorLogEntry
	for rows.Next() {
		entry := &models.ErrorLogEntry{}
		var (
			timestamp                          string
			stack, route, method               sql.NullString
			userID, ip, userAgent, requestBody sql.NullString
			contextJSON                        sql.NullString
		)

		err := rows.Scan(&entry.ID, &timestamp, &entry.Severity, &entry.ErrorType,
			&entry.Message, &stack, &route, &method, &userID, &ip,
			&userAgent, &requestBody, &contextJSON, &entry.Resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}

		if entry.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		entry.Stack = stack.String
		entry.Route = route.String
		entry.Method = method.String
		entry.UserID = fromNullString(userID)
		entry.IPAddress = fromNullString(ip)
		entry.UserAgent = fromNullString(userAgent)
		entry.RequestBody = fromNullString(requestBody)
		if contextJSON.Valid && contextJSON.String != "" {
			_ = json.Unmarshal([]byte(contextJSON.String), &entry.Context)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ResolveErrorLog flips the resolved flag, the only mutation entries admit.
func ResolveErrorLog(db *sql.DB, id string) error {
	result, err := db.Exec(`UPDATE error_logs SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve error log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no error log with id %s", id)
	}
	return nil
}

// NullifyErrorLogUser severs the account link on entries while preserving
// the diagnostic history itself.
func NullifyErrorLogUser(db *sql.DB, userID string) error {
	_, err := db.Exec(`UPDATE error_logs SET user_id = NULL WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to nullify error log user: %w", err)
	}
	return nil
}

// DeleteResolvedErrorLogsBefore removes resolved entries older than cutoff
// and returns the count.
func DeleteResolvedErrorLogsBefore(db *sql.DB, cutoff time.Time) (int, error) {
	result, err := db.Exec(
		`DELETE FROM error_logs WHERE resolved = 1 AND timestamp <= ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete error logs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
