package testutil

import (
	"anonstream/internal/stream"
	"anonstream/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing with no size cap.
func NewTestVault() stream.MediaVault {
	return vault.NewMemoryVault(0)
}
