// Package storage provides abstraction for file object storage.
// This enables support for different storage backends (local filesystem, S3)
// without changing the handler code.
package storage

import (
	"context"
	"io"
	"time"
)

// Backend defines the interface for object storage operations.
//
// Uploads are client-direct: the server hands out a signed upload URL
// scoped to a single object key, the client PUTs the bytes there, and
// the server later verifies the object exists before publishing it.
type Backend interface {
	// PresignUpload returns a URL the client can PUT object bytes to.
	// The URL is scoped to the given key and expires after expiry.
	PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error)

	// PresignDownload returns a URL the client can be redirected to for
	// fetching the object. disposition is the Content-Disposition value
	// the URL should serve with. Backends with no out-of-band download
	// path return an empty URL and nil error; callers then stream the
	// object themselves via Retrieve.
	PresignDownload(ctx context.Context, key string, disposition string, expiry time.Duration) (string, error)

	// Store writes data from the reader directly to storage under key.
	// Used by server-side upload paths that bypass signed URLs.
	Store(ctx context.Context, key string, reader io.Reader, size int64) error

	// Retrieve returns a reader for the stored object.
	// The caller is responsible for closing the returned ReadCloser.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes an object from storage. Deleting an object that
	// does not exist is not an error.
	Delete(ctx context.Context, key string) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g. "Store", "Retrieve", "Delete")
	Key     string // Object key involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, key string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Key:     key,
		Err:     err,
		Message: message,
	}
}
