package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"anonstream/internal/stream"
)

// FileSystemVault is a filesystem-based implementation of the MediaVault
// interface. Object keys map directly onto paths under the objects
// directory:
//
//	<root>/
//	  objects/
//	    uploads/<userID>/<timestamp>_<itemID>
type FileSystemVault struct {
	root       string
	objectsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(root string) (*FileSystemVault, error) {
	objectsDir := filepath.Join(root, "objects")
	if err := os.MkdirAll(objectsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create objects directory: %w", err)
	}

	return &FileSystemVault{
		root:       root,
		objectsDir: objectsDir,
	}, nil
}

// objectPath resolves a key to a path under the objects directory, rejecting
// keys that would escape it.
func (v *FileSystemVault) objectPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(v.objectsDir, clean), nil
}

// Put stores an object under key using atomic write (temp file + rename).
func (v *FileSystemVault) Put(key string, r io.Reader, size int64) error {
	destPath, err := v.objectPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	return v.writeFile(destPath, r, size)
}

// Get retrieves an object by key and writes it to w.
func (v *FileSystemVault) Get(key string, w io.Writer) error {
	srcPath, err := v.objectPath(key)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %s: %w", key, stream.ErrNotFound)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	return nil
}

// Delete removes an object. Deleting a missing key is a no-op.
func (v *FileSystemVault) Delete(key string) error {
	destPath, err := v.objectPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Purge removes every object and recreates the empty objects directory.
func (v *FileSystemVault) Purge() error {
	if err := os.RemoveAll(v.objectsDir); err != nil {
		return fmt.Errorf("failed to purge vault: %w", err)
	}
	if err := os.MkdirAll(v.objectsDir, 0755); err != nil {
		return fmt.Errorf("failed to recreate objects directory: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.objectsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write
// (temp file + rename). A full disk surfaces as ErrQuotaExceeded.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("writing object: %w", stream.ErrQuotaExceeded)
		}
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements the MediaVault interface
var _ stream.MediaVault = (*FileSystemVault)(nil)
