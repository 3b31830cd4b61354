package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftware/driftbox/internal/models"
)

// GetRateLimitEntry returns the ledger for an IP, or nil when the IP has
// never uploaded.
func GetRateLimitEntry(db *sql.DB, ip string) (*models.RateLimitEntry, error) {
	entry := &models.RateLimitEntry{IP: ip}
	var uploads string
	var bannedUntil sql.NullString

	err := db.QueryRow(
		`SELECT uploads, banned_until, permanent_ban, ban_count FROM rate_limits WHERE ip = ?`, ip).
		Scan(&uploads, &bannedUntil, &entry.PermanentBan, &entry.BanCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rate limit: %w", err)
	}

	var stamps []string
	if err := json.Unmarshal([]byte(uploads), &stamps); err != nil {
		stamps = nil
	}
	for _, s := range stamps {
		if t, err := parseTime(s); err == nil {
			entry.Uploads = append(entry.Uploads, t)
		}
	}

	if entry.BannedUntil, err = parseNullableTime(bannedUntil); err != nil {
		return nil, fmt.Errorf("failed to parse banned_until: %w", err)
	}

	return entry, nil
}

// SaveRateLimitEntry upserts the full ledger row for an IP.
func SaveRateLimitEntry(db *sql.DB, entry *models.RateLimitEntry) error {
	stamps := make([]string, 0, len(entry.Uploads))
	for _, t := range entry.Uploads {
		stamps = append(stamps, formatTime(t))
	}
	encoded, err := json.Marshal(stamps)
	if err != nil {
		return fmt.Errorf("failed to encode uploads: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO rate_limits (ip, uploads, banned_until, permanent_ban, ban_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(ip) DO UPDATE SET
			uploads = excluded.uploads,
			banned_until = excluded.banned_until,
			permanent_ban = excluded.permanent_ban,
			ban_count = excluded.ban_count`,
		entry.IP, string(encoded), formatNullableTime(entry.BannedUntil),
		entry.PermanentBan, entry.BanCount)
	if err != nil {
		return fmt.Errorf("failed to save rate limit: %w", err)
	}
	return nil
}

// AppendRateLimitUpload records one successful upload against the IP.
func AppendRateLimitUpload(db *sql.DB, ip string, at time.Time) error {
	entry, err := GetRateLimitEntry(db, ip)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &models.RateLimitEntry{IP: ip}
	}
	entry.Uploads = append(entry.Uploads, at)
	return SaveRateLimitEntry(db, entry)
}
