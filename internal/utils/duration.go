package utils

import "time"

// RetentionLabels is the closed set of retention windows the client may pick.
var RetentionLabels = []string{
	"1hour", "6hours", "12hours", "1day", "2days", "7days", "30days", "never",
}

// DeleteDuration maps a retention label to an absolute expiry instant.
// "never" yields nil. Unknown labels fall back to the 30-day default
// rather than erroring; clients have shipped with odd labels before.
func DeleteDuration(label string, now time.Time) *time.Time {
	var d time.Duration

	switch label {
	case "1hour":
		d = time.Hour
	case "6hours":
		d = 6 * time.Hour
	case "12hours":
		d = 12 * time.Hour
	case "1day":
		d = 24 * time.Hour
	case "2days":
		d = 2 * 24 * time.Hour
	case "7days":
		d = 7 * 24 * time.Hour
	case "never":
		return nil
	case "30days":
		d = 30 * 24 * time.Hour
	default:
		d = 30 * 24 * time.Hour
	}

	t := now.Add(d)
	return &t
}
