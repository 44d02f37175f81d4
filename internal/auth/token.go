package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// TokenPrefix is the prefix for all generated tokens
	TokenPrefix = "evt_"
	// TokenLength is the length of the random part of the token
	TokenLength = 32
)

// GenerateToken generates a new bearer token.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(bytes), nil
}

// HashToken hashes a token for comparison and logging.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
