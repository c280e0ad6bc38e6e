package stream

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"anonstream/internal/model"
)

// ProfileUpdate carries a partial identity update. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	DisplayName string
	AvatarColor string
}

// Identity returns the persistent anonymous identity, creating one on first
// call. The fast cache is authoritative between updates; a freshly created
// identity is persisted to both the cache and the store before it is
// returned.
func (s *Service) Identity() (*model.User, error) {
	cached, err := s.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("reading identity cache: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	id := s.idgen.New()
	user := &model.User{
		ID:          id,
		DisplayName: "User_" + shortID(id),
		AvatarColor: randomAvatarColor(),
		CreatedAt:   s.clock.Now(),
	}

	if err := s.store.PutUser(user); err != nil {
		return nil, fmt.Errorf("persisting identity: %w", err)
	}
	if err := s.cache.Save(user); err != nil {
		// Without a cached identity the next call mints a fresh user, so the
		// store row would be orphaned. Remove it before reporting failure.
		if rbErr := s.store.DeleteUser(user.ID); rbErr != nil {
			s.logger.Error("identity rollback failed", "user", user.ID, "error", rbErr)
		}
		return nil, fmt.Errorf("caching identity: %w", err)
	}

	s.logger.Info("identity created", "user", user.ID, "name", user.DisplayName)
	return user, nil
}

// UpdateProfile merges the given fields into the current identity and
// persists the result to both the store and the cache before returning.
// The update never partially applies: if the cache write fails, the store
// row is rolled back and the caller keeps observing the old identity.
// Author snapshots on past uploads and comments are left as written.
func (s *Service) UpdateProfile(update ProfileUpdate) (*model.User, error) {
	if update.DisplayName != "" && strings.TrimSpace(update.DisplayName) == "" {
		return nil, &ValidationError{Field: "displayName", Reason: "must not be blank"}
	}

	current, err := s.Identity()
	if err != nil {
		return nil, err
	}

	updated := *current
	if update.DisplayName != "" {
		updated.DisplayName = strings.TrimSpace(update.DisplayName)
	}
	if update.AvatarColor != "" {
		updated.AvatarColor = update.AvatarColor
	}

	if err := s.store.PutUser(&updated); err != nil {
		return nil, fmt.Errorf("updating identity: %w", err)
	}
	if err := s.cache.Save(&updated); err != nil {
		if rbErr := s.store.PutUser(current); rbErr != nil {
			s.logger.Error("identity rollback failed", "user", current.ID, "error", rbErr)
		}
		return nil, fmt.Errorf("caching identity update: %w", err)
	}

	s.logger.Info("profile updated", "user", updated.ID)
	return &updated, nil
}

// shortID returns the first five characters of an id, matching the default
// display name convention.
func shortID(id string) string {
	if len(id) > 5 {
		return id[:5]
	}
	return id
}

func randomAvatarColor() string {
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", rand.IntN(360))
}
