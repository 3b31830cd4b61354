package models

import "time"

// RateLimitEntry is the per-IP upload activity ledger.
type RateLimitEntry struct {
	IP           string
	Uploads      []time.Time // pruned to the lookback window on read
	BannedUntil  *time.Time  // temporary ban expiry
	PermanentBan bool
	BanCount     int // escalation counter, never reset
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed bool
	Reason  string
}

// IPBan is an explicit moderation record, independent of rate limiting.
type IPBan struct {
	IPAddress   string
	IsPermanent bool
	BannedUntil *time.Time // nil when permanent
	Reason      string
	BannedBy    string // issuing admin username
	CreatedAt   time.Time
}

// BanStatus is returned by the ban-status endpoint.
type BanStatus struct {
	Banned         bool       `json:"banned"`
	IsPermanent    bool       `json:"isPermanent,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	BannedUntil    *time.Time `json:"bannedUntil,omitempty"`
	HoursRemaining int        `json:"hoursRemaining,omitempty"`
}
