package models

import "time"

// User represents a registered uploader account.
type User struct {
	ID                    string // uuid
	Username              string
	PasswordHash          string
	Email                 *string
	IsVerified            bool
	VerificationCode      *string
	VerificationEmails    int // emails sent today, capped
	VerificationLastSent  *time.Time
	ResetToken            *string
	ResetTokenExpires     *time.Time
	ResetEmails           int
	ResetLastSent         *time.Time
	CreatedAt             time.Time
	LastActivity          time.Time
	IPAddress             *string
}

// Session is a bearer login session.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
}

// SignupRequest is the body of the signup endpoint.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// SigninRequest is the body of the signin endpoint. Username also accepts
// the account email.
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and signin.
type AuthResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token,omitempty"`
	User    PublicUser  `json:"user"`
}

// PublicUser is the user shape safe to return to the client.
type PublicUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      *string `json:"email"`
	IsVerified bool    `json:"is_verified"`
}

// UserListItem is a row in the admin user listing.
type UserListItem struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	FileCount    int       `json:"file_count"`
	TotalBytes   int64     `json:"total_bytes"`
}
