package models

import "time"

// File represents one uploaded artifact.
//
// Exactly one of StoragePath, InlineData, or a row set in file_chunks is
// the authoritative data location. Records with none of the three are
// orphans and get reclaimed by the cleanup sweep.
type File struct {
	ID               string // 8-character alphanumeric identifier
	Filename         string // sanitized original filename
	FileSize         int64
	MimeType         string
	UploaderID       *string // nil for anonymous uploads
	UploaderUsername *string
	CreatedAt        time.Time
	DeleteAt         *time.Time // nil means never
	DeleteDuration   string     // retention label the uploader picked
	DownloadCount    int
	UniqueVisitors   []string // distinct visitor IPs
	StoragePath      string   // object-store key, empty for legacy records
	UsesStorage      bool
	InlineData       string // legacy base64 payload, empty for storage-backed files
}

// HasData reports whether the record points at any byte payload at all.
// Chunked records are resolved separately against the file_chunks table.
func (f *File) HasData() bool {
	return f.StoragePath != "" || f.InlineData != ""
}

// UploadSlotRequest is the body of the get-upload-url endpoint.
type UploadSlotRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	FileSize    int64  `json:"filesize"`
}

// UploadSlotResponse is returned by the get-upload-url endpoint.
type UploadSlotResponse struct {
	FileID      string `json:"fileId"`
	StoragePath string `json:"storagePath"`
	SignedURL   string `json:"signedUrl"`
	ExpiresIn   int    `json:"expiresIn"` // seconds the credential stays valid
}

// FinalizeRequest is the body of the finalize-upload endpoint.
type FinalizeRequest struct {
	FileID         string `json:"fileId"`
	StoragePath    string `json:"storagePath"`
	Filename       string `json:"filename"`
	FileSize       int64  `json:"filesize"`
	MimeType       string `json:"mimeType"`
	DeleteDuration string `json:"deleteDuration"`
}

// FinalizeResponse is returned after a successful finalize.
type FinalizeResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"fileId"`
	URL     string `json:"url"`
}

// FileInfo is the public metadata shape for the share page.
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

// ErrorResponse is the JSON error response shape shared by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatsResponse is the public stats endpoint payload.
type StatsResponse struct {
	TotalFiles        int    `json:"totalFiles"`
	TotalUsers        int    `json:"totalUsers"`
	TotalStorageBytes int64  `json:"totalStorageBytes"`
	TotalStorageHuman string `json:"totalStorageHuman"`
}

// HealthResponse is the JSON response for the health check endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	TotalFiles       int    `json:"total_files"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
	Database         string `json:"database"`
	Storage          string `json:"storage"`
}
