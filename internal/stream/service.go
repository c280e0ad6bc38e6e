package stream

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"anonstream/internal/model"
)

// Service is the orchestration layer that coordinates the store, vault,
// staging area, and identity cache to perform the high-level operations the
// CLI needs.
type Service struct {
	store   Store
	staging StagingArea
	vault   MediaVault
	cache   IdentityCache
	logger  Logger
	clock   Clock
	idgen   IDGenerator

	// toggleMu guards toggleLocks; each per-tuple lock serializes
	// overlapping toggles for one (user, file, type) key.
	toggleMu    sync.Mutex
	toggleLocks map[string]*sync.Mutex
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, staging StagingArea, vault MediaVault, cache IdentityCache, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		store:       store,
		staging:     staging,
		vault:       vault,
		cache:       cache,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		toggleLocks: make(map[string]*sync.Mutex),
	}
}

// Stage validates a draft and queues it for publishing. media may be nil for
// text drafts.
func (s *Service) Stage(draft *model.Draft, media io.Reader) error {
	if strings.TrimSpace(draft.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if draft.ID == "" {
		draft.ID = s.idgen.New()
	}
	draft.StagedAt = s.clock.Now()

	if err := s.staging.Stage(draft, media); err != nil {
		return fmt.Errorf("staging draft: %w", err)
	}

	s.logger.Debug("draft staged", "draft", draft.ID, "title", draft.Title)
	return nil
}

// Drafts returns the queued drafts, oldest first.
func (s *Service) Drafts() ([]*model.Draft, error) {
	return s.staging.List()
}

// PublishAll drains the staging queue, publishing each draft.
// Returns the number of items published.
func (s *Service) PublishAll() (int, error) {
	count := 0

	for {
		queued, err := s.staging.Count()
		if err != nil {
			return count, fmt.Errorf("checking staging queue: %w", err)
		}
		if queued == 0 {
			break
		}

		err = s.staging.ProcessNext(func(draft *model.Draft, media io.Reader) error {
			_, err := s.publishDraft(draft, media)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("publishing draft: %w", err)
		}

		count++
	}

	s.logger.Info("publish complete", "count", count)
	return count, nil
}

// publishDraft turns one draft into a stored content item.
//
// Strategy: upload the media to the vault first, then insert the record.
// If the insert fails, the uploaded object is deleted so a media reference
// never exists without a persisted record, and vice versa.
func (s *Service) publishDraft(draft *model.Draft, media io.Reader) (*model.ContentItem, error) {
	user, err := s.Identity()
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	now := s.clock.Now()
	item := &model.ContentItem{
		ID:          draft.ID,
		Title:       draft.Title,
		Description: draft.Description,
		Tags:        draft.Tags,
		Type:        draft.Type,
		Content:     draft.Content,
		AuthorID:    user.ID,
		AuthorName:  user.DisplayName,
		Date:        now,
	}

	if media != nil {
		key := MediaKey(user.ID, now.UnixMilli(), item.ID)
		if err := s.vault.Put(key, media, draft.Size); err != nil {
			return nil, fmt.Errorf("uploading media: %w", err)
		}
		item.MediaRef = key

		if err := s.store.CreateFile(item); err != nil {
			// Best effort: don't leave an orphaned payload behind.
			if delErr := s.vault.Delete(key); delErr != nil {
				s.logger.Warn("orphaned media object", "key", key, "error", delErr)
			}
			return nil, fmt.Errorf("creating content item: %w", err)
		}
	} else {
		if err := s.store.CreateFile(item); err != nil {
			return nil, fmt.Errorf("creating content item: %w", err)
		}
	}

	s.logger.Info("published", "file", item.ID, "type", item.Type, "title", item.Title)
	return item, nil
}

// MediaKey builds the vault object key for an item's payload.
func MediaKey(userID string, unixMilli int64, itemID string) string {
	return fmt.Sprintf("uploads/%s/%d_%s", userID, unixMilli, itemID)
}

// List returns the full materialized content list, newest first.
func (s *Service) List() ([]*model.ContentItem, error) {
	return s.store.ListFiles()
}

// Get returns a single content item by id.
func (s *Service) Get(fileID string) (*model.ContentItem, error) {
	return s.store.GetFile(fileID)
}

// FetchMedia streams an item's binary payload to w.
func (s *Service) FetchMedia(fileID string, w io.Writer) error {
	item, err := s.store.GetFile(fileID)
	if err != nil {
		return err
	}
	if item.MediaRef == "" {
		return fmt.Errorf("item %s has no media payload", fileID)
	}
	return s.vault.Get(item.MediaRef, w)
}

// Users returns every known identity, for the People view.
func (s *Service) Users() ([]*model.User, error) {
	return s.store.ListUsers()
}

// Profile returns a user and their uploads, newest first. The user record is
// looked up live; author snapshots on old items may legitimately differ.
func (s *Service) Profile(userID string) (*model.User, []*model.ContentItem, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading user: %w", err)
	}

	items, err := s.store.ListFilesByAuthor(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing uploads: %w", err)
	}
	return user, items, nil
}
