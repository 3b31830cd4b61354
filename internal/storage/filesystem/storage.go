// Package filesystem implements the storage Backend interface for local
// filesystem storage.
//
// Signed upload URLs point back at the server's own storage upload
// endpoint, authorized with an HMAC token over the object key and
// expiry. The endpoint verifies the token and calls Store.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/utils"
)

// FilesystemStorage implements storage.Backend for local filesystem storage.
type FilesystemStorage struct {
	baseDir    string // Base directory for all storage operations
	absBaseDir string // Absolute path of baseDir for path validation
	publicURL  string // Base URL the server is reachable at, no trailing slash
	secret     string // HMAC secret for signed upload URLs
}

// NewFilesystemStorage creates a new FilesystemStorage rooted at baseDir.
// publicURL and secret are used to mint signed upload URLs that point at
// the server's storage upload endpoint.
func NewFilesystemStorage(baseDir, publicURL, secret string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	slog.Info("filesystem storage initialized", "dir", absBaseDir)

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
		publicURL:  strings.TrimRight(publicURL, "/"),
		secret:     secret,
	}, nil
}

// validatePath validates that the key doesn't escape the base directory.
// Returns the safe full path or an error if path traversal is detected.
func (fs *FilesystemStorage) validatePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return "", fmt.Errorf("null bytes not allowed in key")
	}

	// Object keys use forward slashes regardless of platform
	cleanKey := filepath.Clean(filepath.FromSlash(key))

	if filepath.IsAbs(cleanKey) {
		return "", fmt.Errorf("absolute paths not allowed: %s", key)
	}
	if strings.HasPrefix(cleanKey, "..") || strings.Contains(cleanKey, string(filepath.Separator)+"..") {
		return "", fmt.Errorf("path traversal not allowed: %s", key)
	}

	fullPath := filepath.Join(fs.baseDir, cleanKey)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) && absPath != fs.absBaseDir {
		return "", fmt.Errorf("path escape attempt: %s", key)
	}

	return fullPath, nil
}

// PresignUpload returns a URL on the server's own storage upload endpoint,
// authorized with an HMAC token over the key and expiry.
func (fs *FilesystemStorage) PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := fs.validatePath(key); err != nil {
		return "", storage.NewStorageErrorWithMessage("PresignUpload", key, err, "key validation failed")
	}

	expires := time.Now().Add(expiry)
	token := utils.SignStorageUpload(fs.secret, key, expires)

	uploadURL := fmt.Sprintf("%s/api/storage/upload/%s?expires=%d&token=%s",
		fs.publicURL, url.PathEscape(key), expires.Unix(), token)

	slog.Debug("local upload URL issued", "key", key, "expiry", expiry)
	return uploadURL, nil
}

// PresignDownload returns an empty URL: local objects have no out-of-band
// download path, so callers stream them via Retrieve.
func (fs *FilesystemStorage) PresignDownload(ctx context.Context, key string, disposition string, expiry time.Duration) (string, error) {
	return "", nil
}

// Store writes data from the reader to the filesystem under key.
// Uses atomic write pattern (temp file then rename).
func (fs *FilesystemStorage) Store(ctx context.Context, key string, reader io.Reader, size int64) error {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Store", key, err, "key validation failed")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return storage.NewStorageError("Store", key, err)
	}

	tempPath := filePath + ".tmp"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return storage.NewStorageError("Store", key, err)
	}

	var succeeded bool
	defer func() {
		tempFile.Close()
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	written, err := io.Copy(tempFile, reader)
	if err != nil {
		return storage.NewStorageError("Store", key, err)
	}

	if size > 0 && written != size {
		return storage.NewStorageErrorWithMessage("Store", key, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d bytes", size, written))
	}

	if err := tempFile.Close(); err != nil {
		return storage.NewStorageError("Store", key, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return storage.NewStorageError("Store", key, err)
	}
	succeeded = true

	slog.Debug("object stored on filesystem", "key", key, "size", written)
	return nil
}

// Retrieve returns a reader for the stored object.
func (fs *FilesystemStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", key, err, "key validation failed")
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewStorageErrorWithMessage("Retrieve", key, err, "object not found")
		}
		return nil, storage.NewStorageError("Retrieve", key, err)
	}
	return f, nil
}

// Exists checks if an object exists on the filesystem.
func (fs *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", key, err, "key validation failed")
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storage.NewStorageError("Exists", key, err)
	}
	return !info.IsDir(), nil
}

// Delete removes an object from the filesystem. Missing objects are not
// an error. Empty parent directories left behind are pruned.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "key validation failed")
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return storage.NewStorageError("Delete", key, err)
	}

	// Prune the per-object directory if it is now empty
	dir := filepath.Dir(filePath)
	if dir != fs.absBaseDir && dir != fs.baseDir {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}

	slog.Debug("object deleted from filesystem", "key", key)
	return nil
}

// HealthCheck verifies the base directory is accessible and writable.
func (fs *FilesystemStorage) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(fs.baseDir)
	if err != nil {
		return storage.NewStorageError("HealthCheck", fs.baseDir, err)
	}
	if !info.IsDir() {
		return storage.NewStorageErrorWithMessage("HealthCheck", fs.baseDir, nil, "storage path is not a directory")
	}

	probe := filepath.Join(fs.baseDir, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return storage.NewStorageError("HealthCheck", fs.baseDir, err)
	}
	os.Remove(probe)
	return nil
}
