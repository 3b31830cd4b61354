package config

import (
	"fmt"
	"os"
	"strconv"
)

// Storage backend selection values.
const (
	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	DBPath    string
	PublicURL string // Base public URL for share links (reverse proxy aware)

	MaxFileSize      int64 // Upload size cap in bytes
	UploadURLExpiry  int   // Signed upload credential validity in seconds
	DownloadRedirect int   // Presigned download URL validity in seconds

	// Storage
	StorageBackend string
	UploadDir      string // filesystem backend
	StorageSecret  string // HMAC secret for filesystem signed upload URLs
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // custom endpoint for MinIO and friends
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool

	// Cleanup
	CleanupSecret string // bearer token guarding the cleanup trigger

	// Moderation / rate limiting
	RateLimitUploads   int // uploads per IP within the window
	RateLimitWindowHrs int
	TempBanDays        int // first escalation

	// Accounts
	AdminUsername     string // the single privileged identity
	SessionExpiryHrs  int
	VerifyEmailsPerDay int // verification email resend cap

	// Outbound email
	ResendAPIKey string
	EmailFrom    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBPath:    getEnv("DB_PATH", "./driftbox.db"),
		PublicURL: getEnv("PUBLIC_URL", ""),

		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		UploadURLExpiry:  getEnvInt("UPLOAD_URL_EXPIRY_SECONDS", 600),
		DownloadRedirect: getEnvInt("DOWNLOAD_URL_EXPIRY_SECONDS", 900),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageBackendFilesystem),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		StorageSecret:  getEnv("STORAGE_SECRET", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:    getEnvBool("S3_PATH_STYLE", false),

		CleanupSecret: getEnv("CLEANUP_SECRET", ""),

		RateLimitUploads:   getEnvInt("RATE_LIMIT_UPLOADS", 100),
		RateLimitWindowHrs: getEnvInt("RATE_LIMIT_WINDOW_HOURS", 24),
		TempBanDays:        getEnvInt("RATE_LIMIT_BAN_DAYS", 7),

		AdminUsername:      getEnv("ADMIN_USERNAME", ""),
		SessionExpiryHrs:   getEnvInt("SESSION_EXPIRY_HOURS", 168),
		VerifyEmailsPerDay: getEnvInt("VERIFICATION_EMAILS_PER_DAY", 5),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "driftbox <noreply@localhost>"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}

	if c.UploadURLExpiry <= 0 {
		return fmt.Errorf("UPLOAD_URL_EXPIRY_SECONDS must be positive, got %d", c.UploadURLExpiry)
	}

	if c.RateLimitUploads <= 0 {
		return fmt.Errorf("RATE_LIMIT_UPLOADS must be positive, got %d", c.RateLimitUploads)
	}

	if c.RateLimitWindowHrs <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_HOURS must be positive, got %d", c.RateLimitWindowHrs)
	}

	if c.SessionExpiryHrs <= 0 {
		return fmt.Errorf("SESSION_EXPIRY_HOURS must be positive, got %d", c.SessionExpiryHrs)
	}

	switch c.StorageBackend {
	case StorageBackendFilesystem:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR cannot be empty with the filesystem backend")
		}
	case StorageBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required with the s3 backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %q or %q)",
			c.StorageBackend, StorageBackendFilesystem, StorageBackendS3)
	}

	return nil
}

// EmailConfigured reports whether outbound email can be sent.
func (c *Config) EmailConfigured() bool {
	return c.ResendAPIKey != ""
}

// CleanupConfigured reports whether the cleanup trigger is usable at all.
func (c *Config) CleanupConfigured() bool {
	return c.CleanupSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
