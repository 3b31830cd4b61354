package utils

import (
	"strings"
	"unicode/utf8"
)

const maxFilenameLength = 255

// SanitizeFilename strips path separators and other dangerous characters
// from a filename. It never returns an empty string and is idempotent:
// sanitizing an already-sanitized name yields the same result.
func SanitizeFilename(filename string) string {
	var b strings.Builder
	b.Grow(len(filename))

	for _, r := range filename {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			// drop control bytes entirely
		default:
			b.WriteRune(r)
		}
	}

	sanitized := strings.TrimSpace(b.String())

	// Collapse runs of underscores left behind by replacement.
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	if sanitized == "" || sanitized == "_" {
		return "unnamed_file"
	}

	if len(sanitized) > maxFilenameLength {
		sanitized = truncateFilename(sanitized)
		// Truncation can expose trailing whitespace that a second pass
		// would strip, so strip it here to keep the function idempotent.
		sanitized = strings.TrimSpace(sanitized)
		if sanitized == "" || sanitized == "_" {
			return "unnamed_file"
		}
	}

	return sanitized
}

// truncateFilename cuts a name down to maxFilenameLength bytes, keeping the
// trailing extension when it sits close enough to the end to be a real one.
func truncateFilename(name string) string {
	lastDot := strings.LastIndex(name, ".")
	if lastDot > 0 && lastDot > maxFilenameLength-20 {
		ext := name[lastDot:]
		if len(ext) < maxFilenameLength {
			base := cutAtRuneBoundary(name[:lastDot], maxFilenameLength-len(ext))
			return base + ext
		}
	}
	return cutAtRuneBoundary(name, maxFilenameLength)
}

// cutAtRuneBoundary truncates s to at most n bytes without splitting a rune.
func cutAtRuneBoundary(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// SanitizeForContentDisposition prepares a filename for use in a
// Content-Disposition header.
func SanitizeForContentDisposition(filename string) string {
	return strings.ReplaceAll(SanitizeFilename(filename), `"`, `\"`)
}
