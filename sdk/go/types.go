// Package driftbox provides a Go client for the driftbox file sharing API.
package driftbox

import "time"

// UploadSlot is a signed upload credential issued by the server.
type UploadSlot struct {
	// FileID is the 8-character file identifier.
	FileID string `json:"fileId"`
	// StoragePath is the object key the client must finalize with.
	StoragePath string `json:"storagePath"`
	// SignedURL is the presigned PUT URL for the raw payload.
	SignedURL string `json:"signedUrl"`
	// ExpiresIn is how many seconds the credential stays valid.
	ExpiresIn int `json:"expiresIn"`
}

// UploadResult is the outcome of a completed upload.
type UploadResult struct {
	// FileID is the 8-character file identifier.
	FileID string `json:"fileId"`
	// URL is the shareable link for the file.
	URL string `json:"url"`
}

// FileInfo is the public metadata of a shared file.
type FileInfo struct {
	ID               string     `json:"id"`
	Filename         string     `json:"filename"`
	FileSize         int64      `json:"filesize"`
	FileSizeHuman    string     `json:"filesize_human"`
	MimeType         string     `json:"mime_type"`
	UploaderUsername *string    `json:"uploader_username"`
	CreatedAt        time.Time  `json:"upload_date"`
	DeleteAt         *time.Time `json:"delete_at"`
	DownloadCount    int        `json:"download_count"`
	DownloadURL      string     `json:"download_url"`
}

// UserFile is a row in the authenticated file listing.
type UserFile struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	FileSize      int64      `json:"filesize"`
	FileSizeHuman string     `json:"filesize_human"`
	MimeType      string     `json:"mime_type"`
	CreatedAt     time.Time  `json:"upload_date"`
	DeleteAt      *time.Time `json:"delete_at"`
	DownloadCount int        `json:"download_count"`
	URL           string     `json:"url"`
}

// User is the public shape of an account.
type User struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      *string `json:"email"`
	IsVerified bool    `json:"is_verified"`
}

// AuthResult is returned by signup and signin.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Stats holds the public aggregate counters.
type Stats struct {
	TotalFiles        int    `json:"totalFiles"`
	TotalUsers        int    `json:"totalUsers"`
	TotalStorageBytes int64  `json:"totalStorageBytes"`
	TotalStorageHuman string `json:"totalStorageHuman"`
}

// BanStatus reports whether the caller's IP is banned.
type BanStatus struct {
	Banned         bool       `json:"banned"`
	IsPermanent    bool       `json:"isPermanent"`
	Reason         string     `json:"reason"`
	BannedUntil    *time.Time `json:"bannedUntil"`
	HoursRemaining int        `json:"hoursRemaining"`
}

// Retention labels accepted by Upload. The server falls back to
// Retention30Days for anything it does not recognize.
const (
	Retention1Hour   = "1hour"
	Retention6Hours  = "6hours"
	Retention12Hours = "12hours"
	Retention1Day    = "1day"
	Retention2Days   = "2days"
	Retention7Days   = "7days"
	Retention30Days  = "30days"
	RetentionNever   = "never"
)
