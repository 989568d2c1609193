package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// APIKeyPrefix marks raw tenant API keys.
const APIKeyPrefix = "tnt_"

// NewAPIKey generates a raw tenant API key: the prefix plus 48 hex chars
// of randomness. Shown once at tenant creation; only its hash is stored.
func NewAPIKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(raw), nil
}

// HashAPIKey returns the hex sha256 of the raw key concatenated with the
// server-side pepper. The pepper keeps a leaked hash table from being
// brute-forced offline against the key format alone.
func HashAPIKey(rawKey, pepper string) string {
	sum := sha256.Sum256([]byte(rawKey + pepper))
	return hex.EncodeToString(sum[:])
}
