// Command driftbox-recover reconciles file records against the object
// store. It reports records whose backing object is gone and, with the
// filesystem backend, objects no record points at.
//
// Nothing is changed unless -fix is passed.
package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/storage/filesystem"
	"github.com/driftware/driftbox/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	var (
		fix   = flag.Bool("fix", false, "delete dangling records and orphaned objects instead of only reporting")
		limit = flag.Int("limit", 10000, "maximum records to examine")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	var store storage.Backend
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		store, err = s3.NewS3Storage(ctx, s3.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3PathStyle,
		})
	default:
		store, err = filesystem.NewFilesystemStorage(cfg.UploadDir, cfg.PublicURL, cfg.StorageSecret)
	}
	if err != nil {
		slog.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}

	started := time.Now()

	dangling := checkRecords(ctx, db, store, *limit, *fix)

	orphans := 0
	if cfg.StorageBackend == config.StorageBackendFilesystem {
		orphans = checkObjects(db, cfg.UploadDir, *fix)
	} else {
		slog.Info("object-side scan skipped, only available with the filesystem backend")
	}

	slog.Info("reconcile finished",
		"dangling_records", dangling,
		"orphaned_objects", orphans,
		"fixed", *fix,
		"duration", time.Since(started),
	)
}

// checkRecords finds records whose storage object no longer exists.
func checkRecords(ctx context.Context, db *sql.DB, store storage.Backend, limit int, fix bool) int {
	files, err := database.ListFiles(db, limit)
	if err != nil {
		slog.Error("failed to list file records", "error", err)
		os.Exit(1)
	}

	dangling := 0
	for _, f := range files {
		if !f.UsesStorage || f.StoragePath == "" {
			continue
		}

		exists, err := store.Exists(ctx, f.StoragePath)
		if err != nil {
			slog.Warn("existence check failed", "file_id", f.ID, "key", f.StoragePath, "error", err)
			continue
		}
		if exists {
			continue
		}

		dangling++
		if fix {
			if err := database.DeleteFile(db, f.ID); err != nil {
				slog.Error("failed to delete dangling record", "file_id", f.ID, "error", err)
				continue
			}
			slog.Info("deleted dangling record", "file_id", f.ID, "key", f.StoragePath)
		} else {
			slog.Warn("dangling record, object missing", "file_id", f.ID, "key", f.StoragePath)
		}
	}
	return dangling
}

// checkObjects walks the upload directory and finds objects no record
// points at.
func checkObjects(db *sql.DB, uploadDir string, fix bool) int {
	orphans := 0

	err := filepath.WalkDir(uploadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(uploadDir, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)

		// Keys are laid out as fileId/filename
		fileID, _, ok := strings.Cut(key, "/")
		if !ok {
			return nil
		}

		file, err := database.GetFileByID(db, fileID)
		if err != nil {
			slog.Warn("record lookup failed", "key", key, "error", err)
			return nil
		}
		if file != nil && file.StoragePath == key {
			return nil
		}

		orphans++
		if fix {
			if err := os.Remove(path); err != nil {
				slog.Error("failed to delete orphaned object", "key", key, "error", err)
				return nil
			}
			slog.Info("deleted orphaned object", "key", key)
		} else {
			slog.Warn("orphaned object, no record", "key", key)
		}
		return nil
	})
	if err != nil {
		slog.Error("walk failed", "error", err)
	}

	return orphans
}
