package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftware/driftbox/internal/models"
)

const userColumns = `
	id, username, password_hash, email, is_verified, verification_code,
	verification_email_count, verification_email_last_sent,
	reset_token, reset_token_expires, reset_email_count, reset_email_last_sent,
	created_at, last_activity, ip_address
`

// CreateUser inserts a new account. The ID is assigned here.
func CreateUser(db *sql.DB, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastActivity.IsZero() {
		user.LastActivity = now
	}

	query := `
		INSERT INTO users (
			id, username, password_hash, email, is_verified, verification_code,
			verification_email_count, verification_email_last_sent,
			reset_token, reset_token_expires, reset_email_count, reset_email_last_sent,
			created_at, last_activity, ip_address
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(
		query,
		user.ID,
		user.Username,
		user.PasswordHash,
		nullableString(user.Email),
		user.IsVerified,
		nullableString(user.VerificationCode),
		user.VerificationEmails,
		formatNullableTime(user.VerificationLastSent),
		nullableString(user.ResetToken),
		formatNullableTime(user.ResetTokenExpires),
		user.ResetEmails,
		formatNullableTime(user.ResetLastSent),
		formatTime(user.CreatedAt),
		formatTime(user.LastActivity),
		nullableString(user.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var (
		email, verificationCode, resetToken, ip      sql.NullString
		verificationLastSent, resetTokenExpires      sql.NullString
		resetLastSent                                sql.NullString
		createdAt, lastActivity                      string
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&email,
		&user.IsVerified,
		&verificationCode,
		&user.VerificationEmails,
		&verificationLastSent,
		&resetToken,
		&resetTokenExpires,
		&user.ResetEmails,
		&resetLastSent,
		&createdAt,
		&lastActivity,
		&ip,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.Email = fromNullString(email)
	user.VerificationCode = fromNullString(verificationCode)
	user.ResetToken = fromNullString(resetToken)
	user.IPAddress = fromNullString(ip)

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.LastActivity, err = parseTime(lastActivity); err != nil {
		return nil, fmt.Errorf("failed to parse last_activity: %w", err)
	}
	if user.VerificationLastSent, err = parseNullableTime(verificationLastSent); err != nil {
		return nil, fmt.Errorf("failed to parse verification_email_last_sent: %w", err)
	}
	if user.ResetTokenExpires, err = parseNullableTime(resetTokenExpires); err != nil {
		return nil, fmt.Errorf("failed to parse reset_token_expires: %w", err)
	}
	if user.ResetLastSent, err = parseNullableTime(resetLastSent); err != nil {
		return nil, fmt.Errorf("failed to parse reset_email_last_sent: %w", err)
	}

	return user, nil
}

// GetUserByID returns the account or nil when absent.
func GetUserByID(db *sql.DB, id string) (*models.User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByUsername returns the account or nil when absent.
func GetUserByUsername(db *sql.DB, username string) (*models.User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// GetUserByEmail returns the account or nil when absent.
func GetUserByEmail(db *sql.DB, email string) (*models.User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// GetUserByUsernameOrEmail resolves a sign-in identifier.
func GetUserByUsernameOrEmail(db *sql.DB, identifier string) (*models.User, error) {
	return scanUser(db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ?`,
		identifier, identifier))
}

// GetUserByResetToken returns the account holding the token, or nil.
func GetUserByResetToken(db *sql.DB, token string) (*models.User, error) {
	return scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE reset_token = ?`, token))
}

// TouchUser updates the activity timestamp and last-known IP.
func TouchUser(db *sql.DB, id, ip string) error {
	_, err := db.Exec(
		`UPDATE users SET last_activity = ?, ip_address = ? WHERE id = ?`,
		formatTime(time.Now()), ip, id)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return nil
}

// MarkVerified flips the verification state and clears the code.
func MarkVerified(db *sql.DB, id string) error {
	_, err := db.Exec(
		`UPDATE users SET is_verified = 1, verification_code = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return nil
}

// SetVerificationCode stores a fresh code and counts the send.
func SetVerificationCode(db *sql.DB, id, code string, sends int) error {
	_, err := db.Exec(
		`UPDATE users SET verification_code = ?, is_verified = 0,
			verification_email_count = ?, verification_email_last_sent = ?
		 WHERE id = ?`,
		code, sends, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set verification code: %w", err)
	}
	return nil
}

// SetResetToken stores a single-use password reset token with its expiry.
func SetResetToken(db *sql.DB, id, token string, expires time.Time, sends int) error {
	_, err := db.Exec(
		`UPDATE users SET reset_token = ?, reset_token_expires = ?,
			reset_email_count = ?, reset_email_last_sent = ?
		 WHERE id = ?`,
		token, formatTime(expires), sends, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return nil
}

// UpdatePassword stores a new hash and consumes any outstanding reset token.
func UpdatePassword(db *sql.DB, id, passwordHash string) error {
	_, err := db.Exec(
		`UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_expires = NULL
		 WHERE id = ?`,
		passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateEmail changes the address and drops back to unverified with the
// given fresh verification code.
func UpdateEmail(db *sql.DB, id, email, verificationCode string) error {
	_, err := db.Exec(
		`UPDATE users SET email = ?, is_verified = 0, verification_code = ?,
			verification_email_count = 1, verification_email_last_sent = ?
		 WHERE id = ?`,
		email, verificationCode, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	return nil
}

// DeleteUser removes the account row only. Callers cascade files and
// nullify error-log references first; see DeleteUserCascade.
func DeleteUser(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM sessions WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// DeleteUserCascade removes an account, deletes every file it owns, and
// nullifies (does not delete) the account reference on error log entries.
// Returns the deleted file records so storage objects can be reclaimed.
func DeleteUserCascade(db *sql.DB, id string) ([]*models.File, error) {
	files, err := DeleteFilesByUploader(db, id)
	if err != nil {
		return nil, err
	}

	if err := NullifyErrorLogUser(db, id); err != nil {
		return nil, err
	}

	if err := DeleteUser(db, id); err != nil {
		return nil, err
	}

	return files, nil
}

// ListUsers returns all accounts with per-account file counts and sizes.
func ListUsers(db *sql.DB) ([]*models.UserListItem, error) {
	query := `
		SELECT u.id, u.username, u.email, u.is_verified, u.created_at, u.last_activity,
			COUNT(f.id), COALESCE(SUM(f.filesize), 0)
		FROM users u
		LEFT JOIN files f ON f.uploader_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var items []*models.UserListItem
	for rows.Next() {
		item := &models.UserListItem{}
		var email sql.NullString
		var createdAt, lastActivity string

		err := rows.Scan(&item.ID, &item.Username, &email, &item.IsVerified,
			&createdAt, &lastActivity, &item.FileCount, &item.TotalBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}

		item.Email = fromNullString(email)
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if item.LastActivity, err = parseTime(lastActivity); err != nil {
			return nil, fmt.Errorf("failed to parse last_activity: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

// ListInactiveUserIDs returns accounts whose last activity predates cutoff.
func ListInactiveUserIDs(db *sql.DB, cutoff time.Time) ([]string, error) {
	rows, err := db.Query(`SELECT id FROM users WHERE last_activity <= ?`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CountUsers returns the number of registered accounts.
func CountUsers(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
