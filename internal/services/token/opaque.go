// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OpaqueLength is the number of random bytes in an opaque bearer token.
const OpaqueLength = 32

// GenerateOpaque returns a random hex token and the SHA256 hash to store.
func GenerateOpaque() (plaintext, hash string, err error) {
	b := make([]byte, OpaqueLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext = hex.EncodeToString(b)
	return plaintext, Hash(plaintext), nil
}

// Hash computes the SHA256 hash of a token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
