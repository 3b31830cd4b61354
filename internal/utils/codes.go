package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	fileIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"

	// FileIDLength is the length of public file identifiers.
	FileIDLength = 8
)

// randomString draws n characters from the given alphabet using crypto/rand.
func randomString(alphabet string, n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	out := make([]byte, n)
	for i, b := range bytes {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// GenerateFileID returns an 8-character alphanumeric file identifier.
// Uniqueness is the caller's problem; collisions are retried against the
// live record set.
func GenerateFileID() (string, error) {
	return randomString(fileIDAlphabet, FileIDLength)
}

// GenerateVerificationCode returns an 8-character lowercase email
// verification code.
func GenerateVerificationCode() (string, error) {
	return randomString(codeAlphabet, 8)
}

// GenerateResetToken returns a 32-character password reset token.
func GenerateResetToken() (string, error) {
	return randomString(fileIDAlphabet, 32)
}

// GenerateSessionToken returns a URL-safe bearer session token with
// 192 bits of entropy.
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
