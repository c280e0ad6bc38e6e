package testutil

import (
	"anonstream/internal/encryption"
	"anonstream/internal/stream"
)

// NewTestEncryptor creates a new deterministic encryptor for testing.
func NewTestEncryptor() stream.Encryptor {
	return encryption.NewTestEncryptor()
}
