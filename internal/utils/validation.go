package utils

import (
	"fmt"
	"strings"
)

// ValidationResult reports whether an input passed validation. Expected
// invalid input is reported through the result, never as an error value.
type ValidationResult struct {
	Valid bool
	Error string
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, Error: msg}
}

// blockedWords is a basic profanity/abuse filter applied to usernames and
// passwords. Matching is case-insensitive substring, which can false-positive
// on innocent words that embed a blocked one; kept as-is deliberately.
var blockedWords = []string{
	"fuck", "shit", "ass", "bitch", "damn", "hell", "sex", "porn", "xxx",
	"nazi", "hitler", "rape", "kill", "death", "hate", "slur", "nigger",
	"fag", "tranny", "retard", "whore", "slut", "cock", "dick", "penis",
	"vagina", "pussy", "cunt", "bastard", "bloody", "piss", "arse",
}

func containsBlockedWord(s string) bool {
	lower := strings.ToLower(s)
	for _, word := range blockedWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// ValidateUsername checks length, character set, and the blocked-word list.
func ValidateUsername(username string) ValidationResult {
	if len(username) < 3 || len(username) > 16 {
		return invalid("Username must be 3-16 characters long")
	}

	for _, r := range username {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return invalid("Username can only contain letters, numbers, dashes, and underscores")
		}
	}

	if containsBlockedWord(username) {
		return invalid("Username contains inappropriate content")
	}

	return valid()
}

const passwordSymbols = `!@#$%^&*-_+,.?;:'"` + "`~"

// ValidatePassword checks length, the allowed character set, and the
// blocked-word list.
func ValidatePassword(password string) ValidationResult {
	if len(password) < 8 || len(password) > 24 {
		return invalid("Password must be 8-24 characters long")
	}

	for _, r := range password {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || strings.ContainsRune(passwordSymbols, r)
		if !ok {
			return invalid("Password contains invalid characters. Allowed: letters, numbers, and " + passwordSymbols)
		}
	}

	if containsBlockedWord(password) {
		return invalid("Password contains inappropriate content")
	}

	return valid()
}

// ValidateFilename rejects empty names, over-long names, and control bytes.
func ValidateFilename(filename string) ValidationResult {
	if strings.TrimSpace(filename) == "" {
		return invalid("Filename cannot be empty")
	}

	if len(filename) > maxFilenameLength {
		return invalid("Filename is too long (max 255 characters)")
	}

	for _, r := range filename {
		if r < 0x20 || r == 0x7f {
			return invalid("Filename contains invalid control characters")
		}
	}

	return valid()
}

// ValidateFileSize checks a declared size against the configured maximum.
func ValidateFileSize(size, maxBytes int64) ValidationResult {
	if size <= 0 {
		return invalid("File size must be positive")
	}
	if size > maxBytes {
		return invalid(fmt.Sprintf("File size exceeds %d MB limit", maxBytes/(1024*1024)))
	}
	return valid()
}
