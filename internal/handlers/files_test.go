package handlers_test

import (
	"encoding/base64"
	"encoding/json"
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
	"github.com/driftware/driftbox/internal/storage/mock"
	"github.com/driftware/driftbox/internal/testutil"
)

func doRequest(handler http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "198.51.100.4:40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFileInfo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FilesHandler(db, cfg, mock.NewMockStorage(), errorlog.New(db))

	file := testutil.SampleFile()
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	rec := doRequest(handler, http.MethodGet, "/api/files/abc12345", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var info models.FileInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ID != "abc12345" || info.Filename != "report.pdf" {
		t.Errorf("info = %+v", info)
	}
	if info.FileSizeHuman == "" {
		t.Error("human-readable size missing")
	}
	if info.DownloadURL != cfg.PublicURL+"/api/files/abc12345/download" {
		t.Errorf("DownloadURL = %q", info.DownloadURL)
	}
}

func TestFileInfoNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FilesHandler(db, cfg, mock.NewMockStorage(), errorlog.New(db))

	rec := doRequest(handler, http.MethodGet, "/api/files/nothere1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "NOT_FOUND" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestFileInfoExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FilesHandler(db, cfg, mock.NewMockStorage(), errorlog.New(db))

	// The record still exists but its window closed; reads must 404
	// even before the sweep removes the row.
	past := time.Now().Add(-time.Minute)
	testutil.CreateTestFile(t, db, "expired1", nil, &past)

	rec := doRequest(handler, http.MethodGet, "/api/files/expired1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for expired file", rec.Code)
	}
}

func TestDownloadStreamsLocalObject(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	handler := handlers.FilesHandler(db, cfg, store, errorlog.New(db))

	file := testutil.SampleFile()
	file.MimeType = "image/png"
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	store.Put(file.StoragePath, []byte("png bytes"))

	rec := doRequest(handler, http.MethodGet, "/api/files/abc12345/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "png bytes" {
		t.Errorf("body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	// Images render inline so chat clients can embed them.
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline;") {
		t.Errorf("Content-Disposition = %q, want inline", cd)
	}

	// Download bookkeeping happened.
	got, _ := database.GetFileByID(db, "abc12345")
	if got.DownloadCount != 1 {
		t.Errorf("DownloadCount = %d, want 1", got.DownloadCount)
	}
	if len(got.UniqueVisitors) != 1 {
		t.Errorf("UniqueVisitors = %v, want one entry", got.UniqueVisitors)
	}
}

func TestDownloadRedirectsWhenPresigned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	store.DownloadURL = "https://objects.invalid/signed"
	handler := handlers.FilesHandler(db, cfg, store, errorlog.New(db))

	file := testutil.SampleFile()
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	store.Put(file.StoragePath, []byte("bytes"))

	rec := doRequest(handler, http.MethodGet, "/api/files/abc12345/download", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://objects.invalid/signed" {
		t.Errorf("Location = %q", loc)
	}
}

func TestDownloadAttachmentForNonMedia(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	handler := handlers.FilesHandler(db, cfg, store, errorlog.New(db))

	file := testutil.SampleFile()
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	store.Put(file.StoragePath, []byte("pdf bytes"))

	rec := doRequest(handler, http.MethodGet, "/api/files/abc12345/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}
	if !strings.Contains(cd, `filename="report.pdf"`) {
		t.Errorf("Content-Disposition = %q, filename missing", cd)
	}
}

func TestDownloadLegacyInline(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FilesHandler(db, cfg, mock.NewMockStorage(), errorlog.New(db))

	payload := []byte("legacy inline payload")
	file := &models.File{
		ID:             "legacy01",
		Filename:       "old.txt",
		FileSize:       int64(len(payload)),
		MimeType:       "text/plain",
		DeleteDuration: "never",
		InlineData:     base64.StdEncoding.EncodeToString(payload),
	}
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	rec := doRequest(handler, http.MethodGet, "/api/files/legacy01/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != string(payload) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDownloadLegacyChunks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FilesHandler(db, cfg, mock.NewMockStorage(), errorlog.New(db))

	file := &models.File{
		ID:             "chunked1",
		Filename:       "big.bin",
		FileSize:       10,
		MimeType:       "application/octet-stream",
		DeleteDuration: "never",
	}
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	for i, part := range []string{"hello", " world"} {
		if _, err := db.Exec(
			`INSERT INTO file_chunks (file_id, chunk_index, data) VALUES (?, ?, ?)`,
			file.ID, i, base64.StdEncoding.EncodeToString([]byte(part))); err != nil {
			t.Fatalf("insert chunk: %v", err)
		}
	}

	rec := doRequest(handler, http.MethodGet, "/api/files/chunked1/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "hello world" {
		t.Errorf("body = %q, want reassembled chunks", rec.Body.String())
	}
}

func TestDownloadCorruptedChunk(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := handlers.FilesHandler(db, cfg, mock.NewMockStorage(), errorlog.New(db))

	file := &models.File{
		ID:             "corrupt1",
		Filename:       "bad.bin",
		FileSize:       4,
		MimeType:       "application/octet-stream",
		DeleteDuration: "never",
	}
	if err := database.CreateFile(db, file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO file_chunks (file_id, chunk_index, data) VALUES (?, 0, '!!not-base64!!')`,
		file.ID); err != nil {
		t.Fatalf("insert chunk: %v", err)
	}

	rec := doRequest(handler, http.MethodGet, "/api/files/corrupt1/download", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "DEPENDENCY_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestDeleteFileOwnerOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.NewMockStorage()
	handler := middleware.OptionalAuth(db)(
		handlers.FilesHandler(db, cfg, store, errorlog.New(db)))

	owner := testutil.CreateTestUser(t, db, "owner", nil)
	other := testutil.CreateTestUser(t, db, "other", nil)
	file := testutil.CreateTestFile(t, db, "owned001", &owner.ID, nil)
	store.Put(file.StoragePath, []byte("bytes"))

	ownerToken := testutil.CreateTestSession(t, db, owner.ID)
	otherToken := testutil.CreateTestSession(t, db, other.ID)

	// Anonymous deletion is rejected.
	rec := doRequest(handler, http.MethodDelete, "/api/files/owned001", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous delete: status = %d, want 401", rec.Code)
	}

	// A different account is rejected.
	rec = doRequest(handler, http.MethodDelete, "/api/files/owned001",
		map[string]string{"Authorization": "Bearer " + otherToken})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner delete: status = %d, want 403", rec.Code)
	}

	// The owner succeeds and the object is reclaimed.
	rec = doRequest(handler, http.MethodDelete, "/api/files/owned001",
		map[string]string{"Authorization": "Bearer " + ownerToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got, _ := database.GetFileByID(db, "owned001"); got != nil {
		t.Error("record survived owner deletion")
	}
	if len(store.Deleted) != 1 || store.Deleted[0] != file.StoragePath {
		t.Errorf("Deleted = %v, want the storage object reclaimed", store.Deleted)
	}
}

func TestUserFilesListing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	handler := middleware.RequireAuth(db)(handlers.UserFilesHandler(db, cfg))

	user := testutil.CreateTestUser(t, db, "lister", nil)
	token := testutil.CreateTestSession(t, db, user.ID)
	testutil.CreateTestFile(t, db, "listed01", &user.ID, nil)
	testutil.CreateTestFile(t, db, "unlisted", nil, nil)

	rec := doRequest(handler, http.MethodGet, "/api/user/files", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous listing: status = %d, want 401", rec.Code)
	}

	rec = doRequest(handler, http.MethodGet, "/api/user/files",
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Files []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].ID != "listed01" {
		t.Errorf("files = %+v, want only the user's upload", resp.Files)
	}
	if !strings.HasPrefix(resp.Files[0].URL, cfg.PublicURL+"/listed01") {
		t.Errorf("URL = %q", resp.Files[0].URL)
	}
}
