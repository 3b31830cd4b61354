package cleanup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftware/driftbox/internal/cleanup"
	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage/mock"
	"github.com/driftware/driftbox/internal/testutil"
)

func TestSweepExpiredFiles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := mock.NewMockStorage()
	sweeper := cleanup.NewSweeper(db, store, errorlog.New(db))

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := testutil.CreateTestFile(t, db, "expired1", nil, &past)
	store.Put(expired.StoragePath, []byte("stale bytes"))
	testutil.CreateTestFile(t, db, "alive001", nil, &future)
	testutil.CreateTestFile(t, db, "forever1", nil, nil)

	summary := sweeper.Sweep(context.Background())

	if summary.DeletedFiles != 1 {
		t.Errorf("DeletedFiles = %d, want 1", summary.DeletedFiles)
	}
	if got, _ := database.GetFileByID(db, "expired1"); got != nil {
		t.Error("expired record survived the sweep")
	}
	if got, _ := database.GetFileByID(db, "alive001"); got == nil {
		t.Error("live record removed by the sweep")
	}

	// The backing object was reclaimed along with the record.
	if len(store.Deleted) != 1 || store.Deleted[0] != expired.StoragePath {
		t.Errorf("Deleted = %v, want [%s]", store.Deleted, expired.StoragePath)
	}
}

func TestSweepOrphanedFiles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := mock.NewMockStorage()
	sweeper := cleanup.NewSweeper(db, store, errorlog.New(db))

	orphan := &models.File{
		ID:             "orphan01",
		Filename:       "lost.bin",
		FileSize:       64,
		MimeType:       "application/octet-stream",
		DeleteDuration: "1day",
	}
	if err := database.CreateFile(db, orphan); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	testutil.CreateTestFile(t, db, "backed01", nil, nil)

	summary := sweeper.Sweep(context.Background())

	if summary.DeletedOrphanedFiles != 1 {
		t.Errorf("DeletedOrphanedFiles = %d, want 1", summary.DeletedOrphanedFiles)
	}
	if got, _ := database.GetFileByID(db, "orphan01"); got != nil {
		t.Error("orphan record survived the sweep")
	}
	if got, _ := database.GetFileByID(db, "backed01"); got == nil {
		t.Error("storage-backed record removed as orphan")
	}
}

func TestSweepInactiveAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := mock.NewMockStorage()
	sweeper := cleanup.NewSweeper(db, store, errorlog.New(db))

	stale := testutil.CreateTestUser(t, db, "stale", nil)
	active := testutil.CreateTestUser(t, db, "active", nil)
	staleFile := testutil.CreateTestFile(t, db, "stale001", &stale.ID, nil)
	store.Put(staleFile.StoragePath, []byte("their bytes"))
	testutil.CreateTestFile(t, db, "activ001", &active.ID, nil)

	old := time.Now().Add(-365 * 24 * time.Hour)
	if _, err := db.Exec(
		`UPDATE users SET last_activity = ? WHERE id = ?`,
		old.UTC().Format(time.RFC3339Nano), stale.ID); err != nil {
		t.Fatalf("backdate user: %v", err)
	}

	summary := sweeper.Sweep(context.Background())

	if summary.DeletedAccounts != 1 {
		t.Errorf("DeletedAccounts = %d, want 1", summary.DeletedAccounts)
	}
	if got, _ := database.GetUserByID(db, stale.ID); got != nil {
		t.Error("inactive account survived the sweep")
	}
	if got, _ := database.GetUserByID(db, active.ID); got == nil {
		t.Error("active account removed by the sweep")
	}
	if got, _ := database.GetFileByID(db, "stale001"); got != nil {
		t.Error("inactive account's file survived the sweep")
	}
	if len(store.Deleted) != 1 || store.Deleted[0] != staleFile.StoragePath {
		t.Errorf("Deleted = %v, want [%s]", store.Deleted, staleFile.StoragePath)
	}
}

func TestSweepResolvedErrorLogs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sweeper := cleanup.NewSweeper(db, mock.NewMockStorage(), errorlog.New(db))

	oldResolved := &models.ErrorLogEntry{
		ErrorType: "a", Message: "old",
		Timestamp: time.Now().Add(-45 * 24 * time.Hour),
		Resolved:  true,
	}
	oldOpen := &models.ErrorLogEntry{
		ErrorType: "b", Message: "still open",
		Timestamp: time.Now().Add(-45 * 24 * time.Hour),
	}
	for _, e := range []*models.ErrorLogEntry{oldResolved, oldOpen} {
		if err := database.InsertErrorLog(db, e); err != nil {
			t.Fatalf("InsertErrorLog: %v", err)
		}
	}

	summary := sweeper.Sweep(context.Background())

	if summary.DeletedErrorLogs != 1 {
		t.Errorf("DeletedErrorLogs = %d, want 1", summary.DeletedErrorLogs)
	}
	logs, err := database.ListErrorLogs(db, false, 10)
	if err != nil {
		t.Fatalf("ListErrorLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != oldOpen.ID {
		t.Errorf("remaining logs = %d, want just the unresolved entry", len(logs))
	}
}

func TestSweepStorageFailureStillDeletesRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := mock.NewMockStorage()
	store.DeleteErr = errors.New("injected delete failure")
	sweeper := cleanup.NewSweeper(db, store, errorlog.New(db))

	past := time.Now().Add(-time.Hour)
	testutil.CreateTestFile(t, db, "expired2", nil, &past)

	summary := sweeper.Sweep(context.Background())

	if summary.DeletedFiles != 1 {
		t.Errorf("DeletedFiles = %d, want 1 despite storage failure", summary.DeletedFiles)
	}
	if got, _ := database.GetFileByID(db, "expired2"); got != nil {
		t.Error("record survived after storage delete failure")
	}

	entries, err := database.ListErrorLogs(db, true, 10)
	if err != nil {
		t.Fatalf("ListErrorLogs: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.ErrorType == "cleanup_storage_delete" {
			found = true
		}
	}
	if !found {
		t.Error("storage delete failure not captured in error log")
	}
}
