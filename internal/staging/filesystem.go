package staging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"anonstream/internal/model"
	"anonstream/internal/stream"
)

// FileSystemStagingArea is a filesystem-based implementation of the
// StagingArea interface. Each queued draft is a metadata file plus an
// optional media file:
//
//	<staging_dir>/
//	  drafts/
//	    <draft_id>.json     (draft metadata)
//	    <draft_id>.media    (media bytes, absent for text drafts)
//
// Ordering comes from the StagedAt timestamp stored in the metadata, with
// the draft id as a tiebreaker.
type FileSystemStagingArea struct {
	stagingDir string
	draftsDir  string
	maxSize    int64
	mu         sync.Mutex
}

// NewFileSystemStagingArea creates a new filesystem-based staging area.
// maxSize is the maximum total size in bytes; must be positive.
func NewFileSystemStagingArea(stagingDir string, maxSize int64) (*FileSystemStagingArea, error) {
	draftsDir := filepath.Join(stagingDir, "drafts")
	if err := os.MkdirAll(draftsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &FileSystemStagingArea{
		stagingDir: stagingDir,
		draftsDir:  draftsDir,
		maxSize:    maxSize,
	}, nil
}

// Stage adds a draft to the queue. The media file is written first so a
// crash between the two writes leaves no queued entry.
func (f *FileSystemStagingArea) Stage(draft *model.Draft, r io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	used, err := f.usedBytes()
	if err != nil {
		return err
	}
	if used+draft.Size > f.maxSize {
		return fmt.Errorf("staging draft %s (%d bytes): %w", draft.ID, draft.Size, stream.ErrQuotaExceeded)
	}

	mediaPath := filepath.Join(f.draftsDir, draft.ID+".media")
	if r != nil {
		if err := writeAtomic(mediaPath, r); err != nil {
			return fmt.Errorf("failed to write staged media: %w", err)
		}
	}

	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		os.Remove(mediaPath)
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	metaPath := filepath.Join(f.draftsDir, draft.ID+".json")
	if err := writeAtomic(metaPath, strings.NewReader(string(data))); err != nil {
		os.Remove(mediaPath)
		return fmt.Errorf("failed to write draft metadata: %w", err)
	}
	return nil
}

// List returns the queued drafts, oldest first.
func (f *FileSystemStagingArea) List() ([]*model.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readQueue()
}

// Count returns the number of queued drafts.
func (f *FileSystemStagingArea) Count() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	drafts, err := f.readQueue()
	if err != nil {
		return 0, err
	}
	return len(drafts), nil
}

// ProcessNext hands the oldest draft and its media to fn. The draft files
// are removed only after fn returns nil; on error they stay for retry.
func (f *FileSystemStagingArea) ProcessNext(fn func(draft *model.Draft, media io.Reader) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	drafts, err := f.readQueue()
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		return fmt.Errorf("staging queue empty: %w", stream.ErrNotFound)
	}

	draft := drafts[0]
	mediaPath := filepath.Join(f.draftsDir, draft.ID+".media")

	var media io.Reader
	mediaFile, err := os.Open(mediaPath)
	switch {
	case err == nil:
		defer mediaFile.Close()
		media = mediaFile
	case os.IsNotExist(err):
		// text draft, no media file
	default:
		return fmt.Errorf("failed to open staged media: %w", err)
	}

	if err := fn(draft, media); err != nil {
		return err
	}

	if mediaFile != nil {
		mediaFile.Close()
	}
	if err := os.Remove(filepath.Join(f.draftsDir, draft.ID+".json")); err != nil {
		return fmt.Errorf("failed to remove draft metadata: %w", err)
	}
	if err := os.Remove(mediaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staged media: %w", err)
	}
	return nil
}

// readQueue loads all draft metadata files sorted by staging time.
func (f *FileSystemStagingArea) readQueue() ([]*model.Draft, error) {
	entries, err := os.ReadDir(f.draftsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	var drafts []*model.Draft
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.draftsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read draft metadata: %w", err)
		}
		var draft model.Draft
		if err := json.Unmarshal(data, &draft); err != nil {
			return nil, fmt.Errorf("failed to decode draft %s: %w", entry.Name(), err)
		}
		drafts = append(drafts, &draft)
	}

	sort.Slice(drafts, func(i, j int) bool {
		if !drafts[i].StagedAt.Equal(drafts[j].StagedAt) {
			return drafts[i].StagedAt.Before(drafts[j].StagedAt)
		}
		return drafts[i].ID < drafts[j].ID
	})
	return drafts, nil
}

// usedBytes sums the declared size of every queued draft.
func (f *FileSystemStagingArea) usedBytes() (int64, error) {
	drafts, err := f.readQueue()
	if err != nil {
		return 0, err
	}
	var used int64
	for _, d := range drafts {
		used += d.Size
	}
	return used, nil
}

// writeAtomic writes r to path via a temp file and rename.
func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
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

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStagingArea implements the StagingArea interface
var _ stream.StagingArea = (*FileSystemStagingArea)(nil)
