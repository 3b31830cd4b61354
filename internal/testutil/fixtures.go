package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/utils"
)

// SampleFile returns a storage-backed file record ready for insertion.
func SampleFile() *models.File {
	return &models.File{
		ID:             "abc12345",
		Filename:       "report.pdf",
		FileSize:       2048,
		MimeType:       "application/pdf",
		CreatedAt:      time.Now(),
		DeleteDuration: "1day",
		StoragePath:    "abc12345/report.pdf",
		UsesStorage:    true,
	}
}

// CreateTestUser inserts a user with the given username and a known
// password ("correct-horse-9!") and returns it.
func CreateTestUser(t *testing.T, db *sql.DB, username string, email *string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("correct-horse-9!")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
	}
	if err := database.CreateUser(db, user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestFile inserts a storage-backed file owned by uploaderID (nil
// for anonymous) and returns it.
func CreateTestFile(t *testing.T, db *sql.DB, id string, uploaderID *string, deleteAt *time.Time) *models.File {
	t.Helper()

	file := &models.File{
		ID:             id,
		Filename:       id + ".bin",
		FileSize:       128,
		MimeType:       "application/octet-stream",
		UploaderID:     uploaderID,
		CreatedAt:      time.Now(),
		DeleteAt:       deleteAt,
		DeleteDuration: "1day",
		StoragePath:    id + "/" + id + ".bin",
		UsesStorage:    true,
	}
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return file
}

// CreateTestSession inserts a session for the user and returns the token.
func CreateTestSession(t *testing.T, db *sql.DB, userID string) string {
	t.Helper()

	token, err := utils.GenerateSessionToken()
	if err != nil {
		t.Fatalf("failed to generate session token: %v", err)
	}

	now := time.Now()
	session := &models.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
		IPAddress: "10.0.0.1",
		UserAgent: "testutil",
	}
	if err := database.CreateSession(db, session); err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}
	return token
}

// MustGetUser reloads a user by ID and fails the test if it is missing.
func MustGetUser(t *testing.T, db *sql.DB, id string) *models.User {
	t.Helper()

	user, err := database.GetUserByID(db, id)
	if err != nil {
		t.Fatalf("failed to load user %s: %v", id, err)
	}
	if user == nil {
		t.Fatalf("user %s not found", id)
	}
	return user
}
