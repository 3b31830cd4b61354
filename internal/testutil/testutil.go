// Package testutil provides helpers shared by package tests.
package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/database"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically closed when the test completes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Each pooled connection would get its own :memory: database, so
	// the pool must be pinned to a single connection.
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestConfig creates a configuration suitable for tests, with the
// filesystem backend rooted in a temporary directory.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Port:      "8080",
		DBPath:    ":memory:",
		PublicURL: "http://driftbox.test",

		MaxFileSize:      10 * 1024 * 1024,
		UploadURLExpiry:  600,
		DownloadRedirect: 900,

		StorageBackend: config.StorageBackendFilesystem,
		UploadDir:      t.TempDir(),
		StorageSecret:  "test-storage-secret",

		CleanupSecret: "test-cleanup-secret",

		RateLimitUploads:   100,
		RateLimitWindowHrs: 24,
		TempBanDays:        7,

		AdminUsername:      "admin",
		SessionExpiryHrs:   24,
		VerifyEmailsPerDay: 5,

		EmailFrom: "driftbox <test@localhost>",
	}
}
