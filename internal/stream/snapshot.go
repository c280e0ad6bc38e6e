package stream

import (
	"fmt"

	"anonstream/internal/model"
)

// SnapshotVersion is the current export format version.
const SnapshotVersion = 1

// Export gathers every collection into a portable snapshot in one consistent
// read. Binary payloads never leave the vault; the snapshot carries only
// metadata and object keys. Export mutates nothing.
func (s *Service) Export() (*model.Snapshot, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("reading collections: %w", err)
	}

	snap.Version = SnapshotVersion
	snap.Date = s.clock.Now()

	s.logger.Info("snapshot exported",
		"files", len(snap.Files),
		"comments", len(snap.Comments),
		"interactions", len(snap.Interactions),
		"users", len(snap.Users))
	return snap, nil
}

// Import merges a snapshot into the store: records whose ids already exist
// are skipped, everything else is inserted in one transaction. Returns the
// number of records added.
func (s *Service) Import(snap *model.Snapshot) (int, error) {
	if snap.Version != SnapshotVersion {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, snap.Version, SnapshotVersion)
	}

	added, err := s.store.RestoreSnapshot(snap)
	if err != nil {
		return 0, fmt.Errorf("restoring snapshot: %w", err)
	}

	s.logger.Info("snapshot imported", "added", added)
	return added, nil
}

// Reset destructively clears every collection and purges the vault's binary
// payloads. The store clear is all-or-nothing; the vault purge runs after it
// and reports its own failure. The CLI gates this behind an explicit typed
// confirmation.
func (s *Service) Reset() error {
	if err := s.store.ResetAll(); err != nil {
		return fmt.Errorf("clearing collections: %w", err)
	}
	if err := s.vault.Purge(); err != nil {
		return fmt.Errorf("purging media vault: %w", err)
	}

	s.logger.Warn("store reset: all collections cleared")
	return nil
}
