// Package mock provides an in-memory storage Backend implementation for testing.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/driftware/driftbox/internal/storage"
)

// MockStorage implements storage.Backend with in-memory object storage.
// Individual operations can be overridden to return errors for testing
// failure paths.
type MockStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Error injection: when set, the corresponding operation fails.
	PresignUploadErr error
	StoreErr         error
	RetrieveErr      error
	ExistsErr        error
	DeleteErr        error
	HealthErr        error

	// DownloadURL, when set, is returned by PresignDownload for any key.
	DownloadURL string

	// Deleted records keys passed to Delete, in order.
	Deleted []string
}

// NewMockStorage creates an empty MockStorage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		objects: make(map[string][]byte),
	}
}

// Put seeds an object directly, bypassing the Backend surface.
func (m *MockStorage) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Len returns the number of stored objects.
func (m *MockStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// PresignUpload returns a deterministic fake URL for the key.
func (m *MockStorage) PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.PresignUploadErr != nil {
		return "", m.PresignUploadErr
	}
	return "https://mock-storage.invalid/upload/" + key, nil
}

// PresignDownload returns DownloadURL if configured, otherwise empty.
func (m *MockStorage) PresignDownload(ctx context.Context, key string, disposition string, expiry time.Duration) (string, error) {
	return m.DownloadURL, nil
}

// Store saves the object bytes in memory.
func (m *MockStorage) Store(ctx context.Context, key string, reader io.Reader, size int64) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.NewStorageError("Store", key, err)
	}
	if size > 0 && int64(len(data)) != size {
		return storage.NewStorageErrorWithMessage("Store", key, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, got %d bytes", size, len(data)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

// Retrieve returns a reader over the stored bytes.
func (m *MockStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}

	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", key, nil, "object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether the key is present.
func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Delete removes the key and records the call.
func (m *MockStorage) Delete(ctx context.Context, key string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

// HealthCheck reports the injected health error, if any.
func (m *MockStorage) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}
