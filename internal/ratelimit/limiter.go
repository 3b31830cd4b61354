// Package ratelimit enforces the per-IP upload quota with ban escalation.
//
// Each IP gets one entry tracking upload timestamps inside a trailing
// window. Exceeding the quota escalates: the first offense earns a
// temporary ban, repeat offenses a permanent one. The offense counter
// never resets, so bans only ever get harsher.
package ratelimit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/metrics"
	"github.com/driftware/driftbox/internal/models"
)

// Limiter checks and records uploads per client IP.
type Limiter struct {
	db         *sql.DB
	maxUploads int
	window     time.Duration
	tempBan    time.Duration
}

// New creates a Limiter allowing maxUploads per window, with tempBan as
// the first-offense ban duration.
func New(db *sql.DB, maxUploads int, window, tempBan time.Duration) *Limiter {
	return &Limiter{
		db:         db,
		maxUploads: maxUploads,
		window:     window,
		tempBan:    tempBan,
	}
}

// Check reports whether ip may upload right now. The entry's upload list
// is pruned to the trailing window as a side effect. Exceeding the quota
// escalates the ban level immediately.
//
// Races between concurrent checks from the same IP are tolerated; the
// count may be slightly off but never corrupts the entry.
func (l *Limiter) Check(ip string) (models.RateLimitResult, error) {
	now := time.Now()

	entry, err := database.GetRateLimitEntry(l.db, ip)
	if err != nil {
		return models.RateLimitResult{}, fmt.Errorf("failed to load rate limit entry: %w", err)
	}
	if entry == nil {
		return models.RateLimitResult{Allowed: true}, nil
	}

	if entry.PermanentBan {
		return models.RateLimitResult{
			Allowed: false,
			Reason:  "This IP address is permanently banned from uploading",
		}, nil
	}

	if entry.BannedUntil != nil {
		if entry.BannedUntil.After(now) {
			hours := int(math.Ceil(entry.BannedUntil.Sub(now).Hours()))
			return models.RateLimitResult{
				Allowed: false,
				Reason:  fmt.Sprintf("Upload limit exceeded. Banned for %d more hours", hours),
			}, nil
		}
		// Ban expired; clear it but keep the offense counter
		entry.BannedUntil = nil
	}

	entry.Uploads = pruneWindow(entry.Uploads, now.Add(-l.window))

	if len(entry.Uploads) >= l.maxUploads {
		entry.BanCount++
		if entry.BanCount >= 2 {
			entry.PermanentBan = true
			metrics.RateLimitBansTotal.WithLabelValues("permanent").Inc()
			slog.Warn("IP permanently banned for repeated upload abuse",
				"ip", ip, "ban_count", entry.BanCount)
		} else {
			until := now.Add(l.tempBan)
			entry.BannedUntil = &until
			metrics.RateLimitBansTotal.WithLabelValues("temporary").Inc()
			slog.Warn("IP temporarily banned for upload abuse",
				"ip", ip, "until", until.Format(time.RFC3339))
		}

		if err := database.SaveRateLimitEntry(l.db, entry); err != nil {
			return models.RateLimitResult{}, fmt.Errorf("failed to save ban escalation: %w", err)
		}

		reason := "Upload limit exceeded. This IP address is now permanently banned"
		if !entry.PermanentBan {
			reason = fmt.Sprintf("Upload limit exceeded. Banned for %d hours",
				int(l.tempBan.Hours()))
		}
		return models.RateLimitResult{Allowed: false, Reason: reason}, nil
	}

	if err := database.SaveRateLimitEntry(l.db, entry); err != nil {
		return models.RateLimitResult{}, fmt.Errorf("failed to save rate limit entry: %w", err)
	}

	return models.RateLimitResult{Allowed: true}, nil
}

// Record appends an upload timestamp for ip. Call only after an upload
// has fully succeeded, never at URL issuance, so abandoned transfers do
// not count against the quota.
func (l *Limiter) Record(ip string) error {
	if err := database.AppendRateLimitUpload(l.db, ip, time.Now()); err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

func pruneWindow(uploads []time.Time, cutoff time.Time) []time.Time {
	kept := uploads[:0]
	for _, t := range uploads {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
