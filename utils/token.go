package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateInviteToken returns a 64-character hex token for a single-use
// invitation link
func GenerateInviteToken() (string, error) {
	return randomHex(32)
}

// GenerateStateToken returns a short-lived CSRF state token for the
// OAuth redirect flow
func GenerateStateToken() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
