package database

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/driftware/driftbox/internal/models"
)

// GetIPBan returns the moderation record for an IP, or nil.
func GetIPBan(db *sql.DB, ip string) (*models.IPBan, error) {
	ban := &models.IPBan{}
	var bannedUntil sql.NullString
	var createdAt string

	err := db.QueryRow(
		`SELECT ip_address, is_permanent, banned_until, reason, banned_by, created_at
		 FROM ip_bans WHERE ip_address = ?`, ip).
		Scan(&ban.IPAddress, &ban.IsPermanent, &bannedUntil, &ban.Reason, &ban.BannedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ip ban: %w", err)
	}

	if ban.BannedUntil, err = parseNullableTime(bannedUntil); err != nil {
		return nil, fmt.Errorf("failed to parse banned_until: %w", err)
	}
	if ban.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return ban, nil
}

// UpsertIPBan creates or replaces a moderation ban. Permanent bans carry
// no expiry.
func UpsertIPBan(db *sql.DB, ban *models.IPBan) error {
	if ban.IsPermanent {
		ban.BannedUntil = nil
	}
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = time.Now()
	}

	_, err := db.Exec(
		`INSERT INTO ip_bans (ip_address, is_permanent, banned_until, reason, banned_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ip_address) DO UPDATE SET
			is_permanent = excluded.is_permanent,
			banned_until = excluded.banned_until,
			reason = excluded.reason,
			banned_by = excluded.banned_by`,
		ban.IPAddress, ban.IsPermanent, formatNullableTime(ban.BannedUntil),
		ban.Reason, ban.BannedBy, formatTime(ban.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert ip ban: %w", err)
	}
	return nil
}

// DeleteIPBan removes a moderation ban.
func DeleteIPBan(db *sql.DB, ip string) error {
	if _, err := db.Exec(`DELETE FROM ip_bans WHERE ip_address = ?`, ip); err != nil {
		return fmt.Errorf("failed to delete ip ban: %w", err)
	}
	return nil
}

// CheckBanStatus resolves the effective ban state for an IP. Expired
// temporary bans are deleted on sight: bans are never proactively swept,
// only cleaned up on the next status check for that IP.
func CheckBanStatus(db *sql.DB, ip string) (*models.BanStatus, error) {
	ban, err := GetIPBan(db, ip)
	if err != nil {
		return nil, err
	}
	if ban == nil {
		return &models.BanStatus{Banned: false}, nil
	}

	if ban.IsPermanent {
		return &models.BanStatus{
			Banned:      true,
			IsPermanent: true,
			Reason:      ban.Reason,
		}, nil
	}

	if ban.BannedUntil != nil {
		now := time.Now()
		if ban.BannedUntil.After(now) {
			hours := int(math.Ceil(ban.BannedUntil.Sub(now).Hours()))
			return &models.BanStatus{
				Banned:         true,
				IsPermanent:    false,
				Reason:         ban.Reason,
				BannedUntil:    ban.BannedUntil,
				HoursRemaining: hours,
			}, nil
		}

		// Lazy expiry: drop the stale row now that we noticed it.
		if err := DeleteIPBan(db, ip); err != nil {
			return nil, err
		}
	}

	return &models.BanStatus{Banned: false}, nil
}
