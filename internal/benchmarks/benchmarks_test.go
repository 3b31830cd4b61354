// Package benchmarks holds microbenchmarks for the hot paths of the
// upload flow: identifier generation, filename sanitization, signing,
// and the per-request database operations.
package benchmarks

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/ratelimit"
	"github.com/driftware/driftbox/internal/utils"
)

func benchDB(b *testing.B) *sql.DB {
	b.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		b.Fatalf("failed to open bench db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		db.Close()
		b.Fatalf("failed to run migrations: %v", err)
	}
	b.Cleanup(func() { db.Close() })
	return db
}

func BenchmarkGenerateFileID(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := utils.GenerateFileID(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSanitizeFilename(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		utils.SanitizeFilename("../reports/2024 Q3 — final (v2).pdf")
	}
}

func BenchmarkSignStorageUpload(b *testing.B) {
	expires := time.Now().Add(10 * time.Minute)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		utils.SignStorageUpload("bench-secret", "abc12345/report.pdf", expires)
	}
}

func BenchmarkCreateFile(b *testing.B) {
	db := benchDB(b)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		id, _ := utils.GenerateFileID()
		file := &models.File{
			ID:             id,
			Filename:       "bench.dat",
			FileSize:       1024,
			MimeType:       "application/octet-stream",
			CreatedAt:      time.Now(),
			DeleteDuration: "1day",
			StoragePath:    id + "/bench.dat",
			UsesStorage:    true,
		}
		if err := database.CreateFile(db, file); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetFileByID(b *testing.B) {
	db := benchDB(b)

	file := &models.File{
		ID:             "benchfid",
		Filename:       "bench.dat",
		FileSize:       1024,
		MimeType:       "application/octet-stream",
		CreatedAt:      time.Now(),
		DeleteDuration: "1day",
		StoragePath:    "benchfid/bench.dat",
		UsesStorage:    true,
	}
	if err := database.CreateFile(db, file); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := database.GetFileByID(db, "benchfid"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIncrementDownloadCount(b *testing.B) {
	db := benchDB(b)

	file := &models.File{
		ID:             "benchcnt",
		Filename:       "bench.dat",
		FileSize:       1024,
		MimeType:       "application/octet-stream",
		CreatedAt:      time.Now(),
		DeleteDuration: "1day",
		StoragePath:    "benchcnt/bench.dat",
		UsesStorage:    true,
	}
	if err := database.CreateFile(db, file); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := database.IncrementDownloadCount(db, "benchcnt"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRateLimitCheck(b *testing.B) {
	db := benchDB(b)
	limiter := ratelimit.New(db, 100, 24*time.Hour, 7*24*time.Hour)

	// Warm entry with a partial window so Check does real pruning work.
	for i := 0; i < 10; i++ {
		if err := limiter.Record("203.0.113.50"); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := limiter.Check("203.0.113.50"); err != nil {
			b.Fatal(err)
		}
	}
}
