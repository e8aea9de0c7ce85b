package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// APIKeyPrefix starts every generated key.
const APIKeyPrefix = "dv_"

// apiKeyDisplayLen is how much of a key is stored in clear for display.
const apiKeyDisplayLen = 8

// GeneratedKey is a fresh API key. Secret is shown to the user once.
type GeneratedKey struct {
	Secret string
	Prefix string
	Hash   string
}

// GenerateAPIKey creates a random key.
func GenerateAPIKey() (*GeneratedKey, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	secret := APIKeyPrefix + hex.EncodeToString(buf)
	return &GeneratedKey{
		Secret: secret,
		Prefix: secret[:apiKeyDisplayLen],
		Hash:   HashAPIKey(secret),
	}, nil
}

// HashAPIKey is the hex SHA-256 stored for lookup.
func HashAPIKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
