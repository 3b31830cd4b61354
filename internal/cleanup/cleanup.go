// Package cleanup implements the scheduled retention sweep.
//
// The sweep runs four independent passes. Each pass is best-effort: a
// failure in one is logged and does not abort the others, and per-item
// failures within a pass skip the item rather than the pass. The
// returned summary is the sweep's only success signal.
package cleanup

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/storage"
)

const (
	// inactiveAccountAge is how long an account may sit idle before the
	// sweep removes it.
	inactiveAccountAge = 6 * 30 * 24 * time.Hour

	// resolvedLogAge is how long resolved error logs are retained.
	resolvedLogAge = 30 * 24 * time.Hour
)

// Sweeper runs retention passes against the database and object store.
type Sweeper struct {
	db     *sql.DB
	store  storage.Backend
	errors *errorlog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(db *sql.DB, store storage.Backend, errors *errorlog.Logger) *Sweeper {
	return &Sweeper{db: db, store: store, errors: errors}
}

// Sweep runs all four passes and returns per-category counts.
func (s *Sweeper) Sweep(ctx context.Context) models.CleanupSummary {
	started := time.Now()
	summary := models.CleanupSummary{Success: true, Timestamp: started}

	summary.DeletedFiles = s.sweepExpiredFiles(ctx, started)
	summary.DeletedOrphanedFiles = s.sweepOrphanedFiles()
	summary.DeletedAccounts = s.sweepInactiveAccounts(ctx, started)
	summary.DeletedErrorLogs = s.sweepResolvedErrorLogs(started)

	slog.Info("cleanup sweep finished",
		"expired_files", summary.DeletedFiles,
		"orphaned_files", summary.DeletedOrphanedFiles,
		"inactive_accounts", summary.DeletedAccounts,
		"error_logs", summary.DeletedErrorLogs,
		"duration", time.Since(started),
	)

	return summary
}

// sweepExpiredFiles deletes records whose retention window has closed,
// reclaiming the backing storage object when one exists.
func (s *Sweeper) sweepExpiredFiles(ctx context.Context, now time.Time) int {
	files, err := database.ListExpiredFiles(s.db, now)
	if err != nil {
		slog.Error("cleanup: failed to list expired files", "error", err)
		s.errors.CaptureError("cleanup_expired_files", err, nil)
		return 0
	}

	deleted := 0
	for _, f := range files {
		s.reclaimObject(ctx, f)
		if err := database.DeleteFile(s.db, f.ID); err != nil {
			slog.Error("cleanup: failed to delete expired file", "file_id", f.ID, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// sweepOrphanedFiles deletes records left behind by failed uploads.
func (s *Sweeper) sweepOrphanedFiles() int {
	files, err := database.ListOrphanedFiles(s.db)
	if err != nil {
		slog.Error("cleanup: failed to list orphaned files", "error", err)
		s.errors.CaptureError("cleanup_orphaned_files", err, nil)
		return 0
	}

	deleted := 0
	for _, f := range files {
		if err := database.DeleteFile(s.db, f.ID); err != nil {
			slog.Error("cleanup: failed to delete orphaned file", "file_id", f.ID, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// sweepInactiveAccounts deletes accounts idle past the retention window.
// Each account's files are removed first, per account rather than
// batched, so a failure mid-pass leaves no half-deleted account.
func (s *Sweeper) sweepInactiveAccounts(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-inactiveAccountAge)
	userIDs, err := database.ListInactiveUserIDs(s.db, cutoff)
	if err != nil {
		slog.Error("cleanup: failed to list inactive accounts", "error", err)
		s.errors.CaptureError("cleanup_inactive_accounts", err, nil)
		return 0
	}

	deleted := 0
	for _, id := range userIDs {
		files, err := database.DeleteUserCascade(s.db, id)
		if err != nil {
			slog.Error("cleanup: failed to delete inactive account", "user_id", id, "error", err)
			continue
		}
		for _, f := range files {
			s.reclaimObject(ctx, f)
		}
		deleted++
	}
	return deleted
}

// sweepResolvedErrorLogs deletes resolved diagnostics past retention.
func (s *Sweeper) sweepResolvedErrorLogs(now time.Time) int {
	deleted, err := database.DeleteResolvedErrorLogsBefore(s.db, now.Add(-resolvedLogAge))
	if err != nil {
		slog.Error("cleanup: failed to delete resolved error logs", "error", err)
		return 0
	}
	return deleted
}

// reclaimObject best-effort deletes a record's backing storage object.
func (s *Sweeper) reclaimObject(ctx context.Context, f *models.File) {
	if !f.UsesStorage || f.StoragePath == "" || s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, f.StoragePath); err != nil {
		slog.Warn("cleanup: failed to delete storage object",
			"file_id", f.ID, "key", f.StoragePath, "error", err)
		s.errors.CaptureError("cleanup_storage_delete", err,
			map[string]any{"file_id": f.ID, "key": f.StoragePath})
	}
}
