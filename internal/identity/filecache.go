// Package identity persists the local anonymous identity in a small JSON
// file, the fast path consulted before the document store.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"anonstream/internal/model"
	"anonstream/internal/stream"
)

// FileCache stores the identity as a single JSON file. Saves are atomic
// (temp file + rename) so a crash never leaves a torn identity behind.
type FileCache struct {
	path string
}

// NewFileCache creates a cache backed by the file at path. The parent
// directory is created on first save.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Load returns the cached identity, or (nil, nil) when none exists.
func (c *FileCache) Load() (*model.User, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read identity cache: %w", err)
	}

	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode identity cache: %w", err)
	}
	return &u, nil
}

// Save persists the identity atomically.
func (c *FileCache) Save(u *model.User) error {
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write identity: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// MemoryCache is an in-memory IdentityCache for tests.
type MemoryCache struct {
	user *model.User
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Load() (*model.User, error) {
	if c.user == nil {
		return nil, nil
	}
	copied := *c.user
	return &copied, nil
}

func (c *MemoryCache) Save(u *model.User) error {
	copied := *u
	c.user = &copied
	return nil
}

// Compile-time checks that both caches implement the IdentityCache interface
var (
	_ stream.IdentityCache = (*FileCache)(nil)
	_ stream.IdentityCache = (*MemoryCache)(nil)
)
