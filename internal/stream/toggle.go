package stream

import (
	"fmt"
	"sync"

	"anonstream/internal/model"
)

// InteractionSet is the set of active interaction types for one item.
type InteractionSet map[model.InteractionType]bool

// Toggle flips the current user's interaction of the given type on an item
// and returns the new state. Overlapping toggles for the same
// (user, file, type) tuple are serialized by a per-tuple lock, so two calls
// in quick succession always net out to the original state instead of
// inserting twice.
func (s *Service) Toggle(fileID string, typ model.InteractionType) (bool, error) {
	user, err := s.Identity()
	if err != nil {
		return false, fmt.Errorf("loading identity: %w", err)
	}
	return s.toggleFor(user.ID, fileID, typ)
}

// MarkViewed records a view exactly once. A second call for the same item is
// a no-op rather than a toggle-off.
func (s *Service) MarkViewed(fileID string) error {
	user, err := s.Identity()
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}

	lock := s.lockFor(user.ID, fileID, model.InteractionView)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.GetInteraction(user.ID, fileID, model.InteractionView)
	if err != nil {
		return fmt.Errorf("checking view record: %w", err)
	}
	if existing != nil {
		return nil
	}

	_, err = s.store.ToggleInteraction(&model.Interaction{
		ID:        s.idgen.New(),
		UserID:    user.ID,
		FileID:    fileID,
		Type:      model.InteractionView,
		Timestamp: s.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("recording view: %w", err)
	}
	return nil
}

func (s *Service) toggleFor(userID, fileID string, typ model.InteractionType) (bool, error) {
	lock := s.lockFor(userID, fileID, typ)
	lock.Lock()
	defer lock.Unlock()

	active, err := s.store.ToggleInteraction(&model.Interaction{
		ID:        s.idgen.New(),
		UserID:    userID,
		FileID:    fileID,
		Type:      typ,
		Timestamp: s.clock.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("toggling %s: %w", typ, err)
	}

	s.logger.Debug("interaction toggled", "file", fileID, "type", typ, "active", active)
	return active, nil
}

// lockFor returns the serialization lock for one (user, file, type) tuple.
func (s *Service) lockFor(userID, fileID string, typ model.InteractionType) *sync.Mutex {
	key := userID + "\x00" + fileID + "\x00" + string(typ)

	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	lock, ok := s.toggleLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.toggleLocks[key] = lock
	}
	return lock
}

// Hydrate reconstructs the current user's active interactions for the whole
// content set in a single composite-index range query: fileID to the set of
// active types. Items with no interactions have no entry.
func (s *Service) Hydrate() (map[string]InteractionSet, error) {
	user, err := s.Identity()
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}
	return s.HydrateUser(user.ID)
}

// HydrateUser is Hydrate for an explicit user id.
func (s *Service) HydrateUser(userID string) (map[string]InteractionSet, error) {
	records, err := s.store.ListInteractionsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}

	state := make(map[string]InteractionSet)
	for _, rec := range records {
		set, ok := state[rec.FileID]
		if !ok {
			set = make(InteractionSet)
			state[rec.FileID] = set
		}
		set[rec.Type] = true
	}
	return state, nil
}

// Bookmarked returns the current user's bookmarked item ids, in the shape the
// query engine takes for the Favorites category.
func (s *Service) Bookmarked() (map[string]bool, error) {
	state, err := s.Hydrate()
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for fileID, set := range state {
		if set[model.InteractionBookmark] {
			out[fileID] = true
		}
	}
	return out, nil
}
