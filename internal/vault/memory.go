package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"anonstream/internal/stream"
)

// MemoryVault is an in-memory implementation of the MediaVault interface.
// It stores all objects in memory, making it useful for testing and for
// throwaway sessions. This implementation is safe for concurrent use.
type MemoryVault struct {
	maxSize int64 // total byte cap; 0 means unlimited
	used    int64
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault. maxSize caps the total bytes
// stored; pass 0 for no cap.
func NewMemoryVault(maxSize int64) *MemoryVault {
	return &MemoryVault{
		maxSize: maxSize,
		objects: make(map[string][]byte),
	}
}

// Put stores an object under key. Overwriting an existing key replaces it
// and releases its previous bytes from the quota.
func (m *MemoryVault) Put(key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous := int64(len(m.objects[key]))
	if m.maxSize > 0 && m.used-previous+size > m.maxSize {
		return fmt.Errorf("storing %s (%d bytes): %w", key, size, stream.ErrQuotaExceeded)
	}

	m.objects[key] = data
	m.used += size - previous
	return nil
}

// Get retrieves an object by key and writes it to w.
func (m *MemoryVault) Get(key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("object %s: %w", key, stream.ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	return nil
}

// Delete removes an object. Deleting a missing key is a no-op.
func (m *MemoryVault) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= int64(len(m.objects[key]))
	delete(m.objects, key)
	return nil
}

// Purge removes every object.
func (m *MemoryVault) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects = make(map[string][]byte)
	m.used = 0
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Len returns the number of stored objects. Used by tests.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Compile-time check that MemoryVault implements the MediaVault interface
var _ stream.MediaVault = (*MemoryVault)(nil)
