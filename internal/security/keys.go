package security

import (
	"crypto/rand"
	"encoding/hex"
)

const keyBytes = 20

// GenerateKey returns a random 40 character hex string for auth tokens.
func GenerateKey() (string, error) {
	b := make([]byte, keyBytes)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
