// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"encoding/hex"
	"testing"

	"codeberg.org/oliverandrich/studyhub/internal/services/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOpaque(t *testing.T) {
	plaintext, hash, err := token.GenerateOpaque()

	require.NoError(t, err)
	assert.Len(t, plaintext, token.OpaqueLength*2)
	_, err = hex.DecodeString(plaintext)
	assert.NoError(t, err)
	assert.Equal(t, token.Hash(plaintext), hash)
	assert.NotEqual(t, plaintext, hash)
}

func TestGenerateOpaque_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		plaintext, _, err := token.GenerateOpaque()
		require.NoError(t, err)
		assert.False(t, seen[plaintext], "duplicate token generated")
		seen[plaintext] = true
	}
}

func TestHash(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		token.Hash(""))
	assert.Len(t, token.Hash("abc"), 64)
	assert.NotEqual(t, token.Hash("a"), token.Hash("b"))
}
