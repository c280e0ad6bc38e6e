package staging

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"anonstream/internal/model"
	"anonstream/internal/stream"
)

// MemoryStagingArea is an in-memory implementation of the StagingArea
// interface. It keeps queued drafts and their media in memory, making it
// useful for testing. This implementation is safe for concurrent use.
type MemoryStagingArea struct {
	maxSize     int64
	currentSize int64
	queue       []*model.Draft
	media       map[string][]byte // draft id -> media bytes
	mu          sync.Mutex
}

// NewMemoryStagingArea creates a new in-memory staging area.
// maxSize is the maximum total size in bytes; must be positive.
func NewMemoryStagingArea(maxSize int64) *MemoryStagingArea {
	return &MemoryStagingArea{
		maxSize: maxSize,
		media:   make(map[string][]byte),
	}
}

// Stage adds a draft to the queue. r carries the media bytes and may be nil
// for text drafts.
func (m *MemoryStagingArea) Stage(draft *model.Draft, r io.Reader) error {
	var data []byte
	if r != nil {
		var err error
		data, err = io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read media: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(len(data))
	if m.currentSize+size > m.maxSize {
		return fmt.Errorf("staging draft %s (%d bytes): %w", draft.ID, size, stream.ErrQuotaExceeded)
	}

	copied := *draft
	m.queue = append(m.queue, &copied)
	if data != nil {
		m.media[draft.ID] = data
	}
	m.currentSize += size
	return nil
}

// List returns the queued drafts, oldest first.
func (m *MemoryStagingArea) List() ([]*model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drafts := make([]*model.Draft, len(m.queue))
	for i, d := range m.queue {
		copied := *d
		drafts[i] = &copied
	}
	return drafts, nil
}

// Count returns the number of queued drafts.
func (m *MemoryStagingArea) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), nil
}

// ProcessNext hands the oldest draft and its media to fn. The draft is
// removed only after fn returns nil; on error it stays queued for retry.
func (m *MemoryStagingArea) ProcessNext(fn func(draft *model.Draft, media io.Reader) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return fmt.Errorf("staging queue empty: %w", stream.ErrNotFound)
	}

	draft := m.queue[0]
	var media io.Reader
	data, hasMedia := m.media[draft.ID]
	if hasMedia {
		media = bytes.NewReader(data)
	}

	if err := fn(draft, media); err != nil {
		return err
	}

	m.queue = m.queue[1:]
	if hasMedia {
		m.currentSize -= int64(len(data))
		delete(m.media, draft.ID)
	}
	return nil
}

// Compile-time check that MemoryStagingArea implements the StagingArea interface
var _ stream.StagingArea = (*MemoryStagingArea)(nil)
