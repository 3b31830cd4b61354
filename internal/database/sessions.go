package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/driftware/driftbox/internal/models"
)

// CreateSession stores a new bearer session.
func CreateSession(db *sql.DB, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	_, err := db.Exec(
		`INSERT INTO sessions (token, user_id, created_at, expires_at, ip_address, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.Token, s.UserID, formatTime(s.CreatedAt), formatTime(s.ExpiresAt),
		s.IPAddress, s.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession returns a live session, or nil when the token is unknown or
// expired. Expired rows are deleted on sight.
func GetSession(db *sql.DB, token string) (*models.Session, error) {
	s := &models.Session{}
	var createdAt, expiresAt string

	err := db.QueryRow(
		`SELECT token, user_id, created_at, expires_at, ip_address, user_agent
		 FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &createdAt, &expiresAt, &s.IPAddress, &s.UserAgent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	if time.Now().After(s.ExpiresAt) {
		_, _ = db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return nil, nil
	}

	return s, nil
}

// DeleteSession removes one session (sign-out).
func DeleteSession(db *sql.DB, token string) error {
	if _, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes every expired session row.
func CleanupExpiredSessions(db *sql.DB) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return nil
}
