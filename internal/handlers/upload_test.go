package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/handlers"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/ratelimit"
	"github.com/driftware/driftbox/internal/storage/mock"
	"github.com/driftware/driftbox/internal/testutil"
)

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.4:40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestGetUploadURL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	handler := handlers.GetUploadURLHandler(db, cfg, store,
		ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour), errorlog.New(db))

	rec := postJSON(t, handler, "/api/files/get-upload-url", models.UploadSlotRequest{
		Filename:    "my report.pdf",
		ContentType: "application/pdf",
		FileSize:    2048,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var slot models.UploadSlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &slot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(slot.FileID) != 8 {
		t.Errorf("FileID = %q, want 8 characters", slot.FileID)
	}
	if !strings.HasPrefix(slot.StoragePath, slot.FileID+"/") {
		t.Errorf("StoragePath = %q, want prefix %q", slot.StoragePath, slot.FileID+"/")
	}
	if slot.SignedURL == "" {
		t.Error("SignedURL empty")
	}
	if slot.ExpiresIn != cfg.UploadURLExpiry {
		t.Errorf("ExpiresIn = %d, want %d", slot.ExpiresIn, cfg.UploadURLExpiry)
	}

	// No record exists until finalize.
	if n, _ := database.CountFiles(db); n != 0 {
		t.Errorf("file records = %d before finalize, want 0", n)
	}
}

func TestGetUploadURLMethodNotAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.GetUploadURLHandler(db, cfg, mock.NewMockStorage(),
		ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour), errorlog.New(db))

	req := httptest.NewRequest(http.MethodGet, "/api/files/get-upload-url", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestGetUploadURLValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.GetUploadURLHandler(db, cfg, mock.NewMockStorage(),
		ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour), errorlog.New(db))

	tests := []struct {
		name string
		req  models.UploadSlotRequest
	}{
		{"empty filename", models.UploadSlotRequest{Filename: ""}},
		{"oversized", models.UploadSlotRequest{Filename: "big.bin", FileSize: cfg.MaxFileSize + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/api/files/get-upload-url", tt.req, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Code != "VALIDATION_ERROR" {
				t.Errorf("code = %q", resp.Code)
			}
		})
	}
}

func TestGetUploadURLRateLimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	limiter := ratelimit.New(db, 1, 24*time.Hour, 7*24*time.Hour)
	handler := handlers.GetUploadURLHandler(db, cfg, mock.NewMockStorage(), limiter, errorlog.New(db))

	if err := limiter.Record("198.51.100.4"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec := postJSON(t, handler, "/api/files/get-upload-url", models.UploadSlotRequest{
		Filename: "late.bin",
	}, nil)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestGetUploadURLStorageFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.PresignUploadErr = errors.New("bucket offline")
	handler := handlers.GetUploadURLHandler(db, cfg, store,
		ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour), errorlog.New(db))

	rec := postJSON(t, handler, "/api/files/get-upload-url", models.UploadSlotRequest{
		Filename: "doomed.bin",
	}, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "DEPENDENCY_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}
}

func finalizeRequest(fileID string) models.FinalizeRequest {
	return models.FinalizeRequest{
		FileID:         fileID,
		StoragePath:    fileID + "/report.pdf",
		Filename:       "report.pdf",
		FileSize:       2048,
		MimeType:       "application/pdf",
		DeleteDuration: "1day",
	}
}

func TestFinalizeUpload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.Put("abc12345/report.pdf", []byte("%PDF-1.4 fake"))
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)
	handler := handlers.FinalizeUploadHandler(db, cfg, store, limiter, errorlog.New(db))

	rec := postJSON(t, handler, "/api/files/finalize-upload", finalizeRequest("abc12345"), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.FinalizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.FileID != "abc12345" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.URL != cfg.PublicURL+"/abc12345.pdf" {
		t.Errorf("URL = %q, want share link with extension", resp.URL)
	}

	file, err := database.GetFileByID(db, "abc12345")
	if err != nil {
		t.Fatalf("GetFileByID: %v", err)
	}
	if file == nil {
		t.Fatal("record missing after finalize")
	}
	if file.DeleteAt == nil {
		t.Error("retention window not set")
	}
	if !file.UsesStorage || file.StoragePath != "abc12345/report.pdf" {
		t.Errorf("record = %+v", file)
	}

	// The successful upload counts against the quota.
	entry, err := database.GetRateLimitEntry(db, "198.51.100.4")
	if err != nil {
		t.Fatalf("GetRateLimitEntry: %v", err)
	}
	if entry == nil || len(entry.Uploads) != 1 {
		t.Errorf("rate limit entry = %+v, want 1 recorded upload", entry)
	}
}

func TestFinalizeUploadObjectMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FinalizeUploadHandler(db, cfg, mock.NewMockStorage(),
		ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour), errorlog.New(db))

	rec := postJSON(t, handler, "/api/files/finalize-upload", finalizeRequest("abc12345"), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}
	if !strings.Contains(resp.Error, "Upload incomplete") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestFinalizeUploadPathMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.Put("other999/stolen.bin", []byte("x"))
	handler := handlers.FinalizeUploadHandler(db, cfg, store,
		ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour), errorlog.New(db))

	req := finalizeRequest("abc12345")
	req.StoragePath = "other999/stolen.bin"
	rec := postJSON(t, handler, "/api/files/finalize-upload", req, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFinalizeUploadInsertFailureRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.Put("abc12345/report.pdf", []byte("bytes"))
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)
	handler := handlers.FinalizeUploadHandler(db, cfg, store, limiter, errorlog.New(db))

	// Pre-existing record with the same ID makes the insert fail.
	testutil.CreateTestFile(t, db, "abc12345", nil, nil)

	rec := postJSON(t, handler, "/api/files/finalize-upload", finalizeRequest("abc12345"), nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "DEPENDENCY_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}

	// The object was deleted so no orphan survives.
	if len(store.Deleted) != 1 || store.Deleted[0] != "abc12345/report.pdf" {
		t.Errorf("Deleted = %v, want the staged object reclaimed", store.Deleted)
	}

	// The failed upload does not count against the quota.
	entry, err := database.GetRateLimitEntry(db, "198.51.100.4")
	if err != nil {
		t.Fatalf("GetRateLimitEntry: %v", err)
	}
	if entry != nil && len(entry.Uploads) != 0 {
		t.Errorf("rate limit entry = %+v, want no recorded uploads", entry)
	}
}

func TestFinalizeUploadUnverifiedAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.Put("abc12345/report.pdf", []byte("bytes"))
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)

	email := "pending@example.com"
	user := testutil.CreateTestUser(t, db, "pending", &email)
	token := testutil.CreateTestSession(t, db, user.ID)

	handler := middleware.OptionalAuth(db)(
		handlers.FinalizeUploadHandler(db, cfg, store, limiter, errorlog.New(db)))

	rec := postJSON(t, handler, "/api/files/finalize-upload", finalizeRequest("abc12345"),
		map[string]string{"Authorization": "Bearer " + token})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "FORBIDDEN" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestFinalizeUploadVerifiedAccountAttribution(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.Put("abc12345/report.pdf", []byte("bytes"))
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)

	email := "alice@example.com"
	user := testutil.CreateTestUser(t, db, "alice", &email)
	if err := database.MarkVerified(db, user.ID); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	token := testutil.CreateTestSession(t, db, user.ID)

	handler := middleware.OptionalAuth(db)(
		handlers.FinalizeUploadHandler(db, cfg, store, limiter, errorlog.New(db)))

	rec := postJSON(t, handler, "/api/files/finalize-upload", finalizeRequest("abc12345"),
		map[string]string{"Authorization": "Bearer " + token})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	file, _ := database.GetFileByID(db, "abc12345")
	if file.UploaderID == nil || *file.UploaderID != user.ID {
		t.Error("upload not attributed to the account")
	}
	if file.UploaderUsername == nil || *file.UploaderUsername != "alice" {
		t.Error("uploader username not recorded")
	}
}

func TestFinalizeUploadSniffsMimeType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.Put("abc12345/report.pdf", []byte("%PDF-1.4\n%fake pdf content"))
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)
	handler := handlers.FinalizeUploadHandler(db, cfg, store, limiter, errorlog.New(db))

	req := finalizeRequest("abc12345")
	req.MimeType = ""
	rec := postJSON(t, handler, "/api/files/finalize-upload", req, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	file, _ := database.GetFileByID(db, "abc12345")
	if file.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q, want sniffed application/pdf", file.MimeType)
	}
}

func TestUploadSlotsAreStateless(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)
	handler := handlers.GetUploadURLHandler(db, cfg, store, limiter, errorlog.New(db))

	// Many abandoned slots never touch the database or the quota.
	for i := 0; i < 5; i++ {
		rec := postJSON(t, handler, "/api/files/get-upload-url", models.UploadSlotRequest{
			Filename: fmt.Sprintf("abandoned-%d.bin", i),
		}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("slot %d: status = %d", i, rec.Code)
		}
	}

	if n, _ := database.CountFiles(db); n != 0 {
		t.Errorf("file records = %d, want 0", n)
	}
	entry, _ := database.GetRateLimitEntry(db, "198.51.100.4")
	if entry != nil && len(entry.Uploads) != 0 {
		t.Errorf("rate limit uploads = %d, want 0 for abandoned slots", len(entry.Uploads))
	}
}
