package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftware/driftbox/internal/models"
)

const fileColumns = `
	id, filename, filesize, mime_type, uploader_id, uploader_username,
	upload_date, delete_at, delete_duration, download_count,
	unique_visitors, storage_path, uses_storage, file_data
`

// CreateFile inserts a new file record. The identifier must already be
// unique; the primary key constraint is the final arbiter when the
// collision-retry loop races.
func CreateFile(db *sql.DB, file *models.File) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	if file.UniqueVisitors == nil {
		file.UniqueVisitors = []string{}
	}

	visitors, err := json.Marshal(file.UniqueVisitors)
	if err != nil {
		return fmt.Errorf("failed to encode visitors: %w", err)
	}

	query := `
		INSERT INTO files (
			id, filename, filesize, mime_type, uploader_id, uploader_username,
			upload_date, delete_at, delete_duration, download_count,
			unique_visitors, storage_path, uses_storage, file_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(
		query,
		file.ID,
		file.Filename,
		file.FileSize,
		file.MimeType,
		nullableString(file.UploaderID),
		nullableString(file.UploaderUsername),
		formatTime(file.CreatedAt),
		formatNullableTime(file.DeleteAt),
		file.DeleteDuration,
		file.DownloadCount,
		string(visitors),
		file.StoragePath,
		file.UsesStorage,
		file.InlineData,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	return nil
}

func scanFile(row *sql.Row) (*models.File, error) {
	file := &models.File{}
	var (
		uploaderID, uploaderUsername    sql.NullString
		uploadDate                      string
		deleteAt                        sql.NullString
		visitors                        string
		storagePath, inlineData         sql.NullString
	)

	err := row.Scan(
		&file.ID,
		&file.Filename,
		&file.FileSize,
		&file.MimeType,
		&uploaderID,
		&uploaderUsername,
		&uploadDate,
		&deleteAt,
		&file.DeleteDuration,
		&file.DownloadCount,
		&visitors,
		&storagePath,
		&file.UsesStorage,
		&inlineData,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query file: %w", err)
	}

	file.UploaderID = fromNullString(uploaderID)
	file.UploaderUsername = fromNullString(uploaderUsername)
	file.StoragePath = storagePath.String
	file.InlineData = inlineData.String

	if file.CreatedAt, err = parseTime(uploadDate); err != nil {
		return nil, fmt.Errorf("failed to parse upload_date: %w", err)
	}
	if file.DeleteAt, err = parseNullableTime(deleteAt); err != nil {
		return nil, fmt.Errorf("failed to parse delete_at: %w", err)
	}
	if err := json.Unmarshal([]byte(visitors), &file.UniqueVisitors); err != nil {
		return nil, fmt.Errorf("failed to decode visitors: %w", err)
	}

	return file, nil
}

// GetFileByID retrieves a file record. Returns nil when not found.
func GetFileByID(db *sql.DB, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	return scanFile(db.QueryRow(query, id))
}

// FileIDExists reports whether the identifier is taken by a live record.
func FileIDExists(db *sql.DB, id string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM files WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check file id: %w", err)
	}
	return n > 0, nil
}

// IncrementDownloadCount atomically bumps the download counter.
func IncrementDownloadCount(db *sql.DB, id string) error {
	_, err := db.Exec(`UPDATE files SET download_count = download_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
	}
	return nil
}

// AddUniqueVisitor records a distinct visitor IP on the file. A read-modify-
// write without locking; a lost update under concurrency costs at most one
// entry in the set, which is tolerated.
func AddUniqueVisitor(db *sql.DB, id, ip string) error {
	var raw string
	err := db.QueryRow(`SELECT unique_visitors FROM files WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read visitors: %w", err)
	}

	var visitors []string
	if err := json.Unmarshal([]byte(raw), &visitors); err != nil {
		visitors = nil
	}
	for _, v := range visitors {
		if v == ip {
			return nil
		}
	}
	visitors = append(visitors, ip)

	encoded, err := json.Marshal(visitors)
	if err != nil {
		return fmt.Errorf("failed to encode visitors: %w", err)
	}

	if _, err := db.Exec(`UPDATE files SET unique_visitors = ? WHERE id = ?`, string(encoded), id); err != nil {
		return fmt.Errorf("failed to update visitors: %w", err)
	}
	return nil
}

// DeleteFile removes a file record and any legacy chunk rows.
func DeleteFile(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM file_chunks WHERE file_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListFilesByUploader returns a user's files, newest first.
func ListFilesByUploader(db *sql.DB, uploaderID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE uploader_id = ? ORDER BY upload_date DESC`
	return queryFiles(db, query, uploaderID)
}

// ListFiles returns up to limit records, newest first, for the admin view.
func ListFiles(db *sql.DB, limit int) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY upload_date DESC LIMIT ?`
	return queryFiles(db, query, limit)
}

func queryFiles(db *sql.DB, query string, args ...any) ([]*models.File, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file := &models.File{}
		var (
			uploaderID, uploaderUsername sql.NullString
			uploadDate                   string
			deleteAt                     sql.NullString
			visitors                     string
			storagePath, inlineData      sql.NullString
		)

		err := rows.Scan(
			&file.ID, &file.Filename, &file.FileSize, &file.MimeType,
			&uploaderID, &uploaderUsername, &uploadDate, &deleteAt,
			&file.DeleteDuration, &file.DownloadCount, &visitors,
			&storagePath, &file.UsesStorage, &inlineData,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}

		file.UploaderID = fromNullString(uploaderID)
		file.UploaderUsername = fromNullString(uploaderUsername)
		file.StoragePath = storagePath.String
		file.InlineData = inlineData.String
		if file.CreatedAt, err = parseTime(uploadDate); err != nil {
			return nil, fmt.Errorf("failed to parse upload_date: %w", err)
		}
		if file.DeleteAt, err = parseNullableTime(deleteAt); err != nil {
			return nil, fmt.Errorf("failed to parse delete_at: %w", err)
		}
		if err := json.Unmarshal([]byte(visitors), &file.UniqueVisitors); err != nil {
			file.UniqueVisitors = nil
		}

		files = append(files, file)
	}

	return files, rows.Err()
}

// DeleteFilesByUploader removes every file a user owns and returns the
// affected records so the caller can reclaim storage objects.
func DeleteFilesByUploader(db *sql.DB, uploaderID string) ([]*models.File, error) {
	files, err := ListFilesByUploader(db, uploaderID)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if err := DeleteFile(db, f.ID); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// ListExpiredFiles returns records whose retention window has closed.
func ListExpiredFiles(db *sql.DB, now time.Time) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE delete_at IS NOT NULL AND delete_at <= ?`
	return queryFiles(db, query, formatTime(now))
}

// ListOrphanedFiles returns records with no inline payload, no storage
// path, and no chunk rows. These are failed or abandoned uploads. A
// record with a storage path is never orphaned regardless of chunk state.
func ListOrphanedFiles(db *sql.DB) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f
		WHERE (f.file_data IS NULL OR f.file_data = '')
		AND (f.storage_path IS NULL OR f.storage_path = '')
		AND NOT EXISTS (SELECT 1 FROM file_chunks c WHERE c.file_id = f.id)`
	return queryFiles(db, query)
}

// CountFiles returns the number of live file records.
func CountFiles(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// TotalFileBytes sums the declared sizes of all live records.
func TotalFileBytes(db *sql.DB) (int64, error) {
	var total sql.NullInt64
	if err := db.QueryRow(`SELECT SUM(filesize) FROM files`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	return total.Int64, nil
}

// HasChunks reports whether legacy chunk rows exist for the file.
func HasChunks(db *sql.DB, fileID string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM file_chunks WHERE file_id = ?`, fileID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check chunks: %w", err)
	}
	return n > 0, nil
}

// GetChunks returns the base64 chunk payloads for a legacy file in order.
func GetChunks(db *sql.DB, fileID string) ([]string, error) {
	rows, err := db.Query(
		`SELECT data FROM file_chunks WHERE file_id = ? ORDER BY chunk_index ASC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, data)
	}

	return chunks, rows.Err()
}
