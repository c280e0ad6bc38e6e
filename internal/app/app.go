package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"anonstream/internal/config"
	"anonstream/internal/encryption"
	"anonstream/internal/identity"
	"anonstream/internal/model"
	"anonstream/internal/staging"
	"anonstream/internal/store"
	"anonstream/internal/stream"
	"anonstream/internal/vault"
)

// App is the application layer between the CLI and the stream Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string arguments, and manages the store lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     stream.Store
	vault     stream.MediaVault
	staging   stream.StagingArea
	cache     stream.IdentityCache
	encryptor stream.Encryptor
	service   *stream.Service
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "add", "publish").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}

	sa, err := staging.NewStagingAreaFromConfig(cfg.Staging)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}

	st, err := store.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	cache := identity.NewFileCache(filepath.Join(cfg.BaseDir, "identity.json"))

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := stream.NewService(st, sa, v, cache, &slogAdapter{l: logger}, stream.RealClock{}, stream.UUIDGenerator{})

	return &App{
		cfg:       cfg,
		store:     st,
		vault:     v,
		staging:   sa,
		cache:     cache,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Whoami returns the local identity, creating one on first use.
func (a *App) Whoami() (*model.User, error) {
	return a.service.Identity()
}

// UpdateProfile applies a partial profile update. Empty arguments leave the
// corresponding field unchanged.
func (a *App) UpdateProfile(displayName, avatarColor string) (*model.User, error) {
	return a.service.UpdateProfile(stream.ProfileUpdate{
		DisplayName: displayName,
		AvatarColor: avatarColor,
	})
}

// AddFiles stages the given paths as drafts. title applies only when a single
// path is given; otherwise each draft takes its title from the filename.
// Markdown and plain text files are staged with their content inline; other
// files carry their bytes into the staging area. Returns the number staged.
func (a *App) AddFiles(rawPaths []string, title, description string, tags []string) (int, error) {
	if title != "" && len(rawPaths) > 1 {
		return 0, fmt.Errorf("--title requires a single file")
	}

	staged := 0
	for _, rawPath := range rawPaths {
		absPath, err := filepath.Abs(rawPath)
		if err != nil {
			return staged, fmt.Errorf("resolving path: %w", err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return staged, fmt.Errorf("inspecting %s: %w", rawPath, err)
		}
		if info.IsDir() {
			return staged, fmt.Errorf("%s is a directory; stage files individually", rawPath)
		}

		draft := &model.Draft{
			Title:       title,
			Description: description,
			Tags:        tags,
			Type:        stream.Classify(info.Name(), info.Size()),
			MediaName:   info.Name(),
		}
		if draft.Title == "" {
			draft.Title = stream.TitleFromFilename(info.Name())
		}

		if draft.Type == model.TypeText {
			data, err := os.ReadFile(absPath)
			if err != nil {
				return staged, fmt.Errorf("reading %s: %w", rawPath, err)
			}
			draft.Content = string(data)

			if err := a.service.Stage(draft, nil); err != nil {
				return staged, err
			}
		} else {
			f, err := os.Open(absPath)
			if err != nil {
				return staged, fmt.Errorf("opening %s: %w", rawPath, err)
			}
			draft.Size = info.Size()

			err = a.service.Stage(draft, f)
			f.Close()
			if err != nil {
				return staged, err
			}
		}

		staged++
	}
	return staged, nil
}

// Drafts returns the staged drafts, oldest first.
func (a *App) Drafts() ([]*model.Draft, error) {
	return a.service.Drafts()
}

// Publish drains the staging queue, returning the number of items published.
func (a *App) Publish() (int, error) {
	return a.service.PublishAll()
}

// List returns the feed filtered by search, category, and sort order,
// together with the current user's interaction state per item.
func (a *App) List(search, category, sortOrder string) ([]*model.ContentItem, map[string]stream.InteractionSet, error) {
	items, err := a.service.List()
	if err != nil {
		return nil, nil, fmt.Errorf("listing content: %w", err)
	}

	bookmarked, err := a.service.Bookmarked()
	if err != nil {
		return nil, nil, fmt.Errorf("loading bookmarks: %w", err)
	}

	filtered := stream.Apply(items, stream.Filter{
		Search:   search,
		Category: stream.Category(category),
		Sort:     stream.SortOrder(sortOrder),
	}, bookmarked)

	state, err := a.service.Hydrate()
	if err != nil {
		return nil, nil, fmt.Errorf("hydrating interactions: %w", err)
	}
	return filtered, state, nil
}

// Show marks an item viewed and returns it with its comment threads.
func (a *App) Show(fileID string) (*model.ContentItem, []*stream.Thread, error) {
	if err := a.service.MarkViewed(fileID); err != nil {
		return nil, nil, err
	}

	item, err := a.service.Get(fileID)
	if err != nil {
		return nil, nil, err
	}

	threads, err := a.service.Threads(fileID)
	if err != nil {
		return nil, nil, err
	}
	return item, threads, nil
}

// Like toggles the like on an item and returns the new state.
func (a *App) Like(fileID string) (bool, error) {
	return a.service.Toggle(fileID, model.InteractionLike)
}

// Save toggles the bookmark on an item and returns the new state.
func (a *App) Save(fileID string) (bool, error) {
	return a.service.Toggle(fileID, model.InteractionBookmark)
}

// CommentOn adds a comment to an item. parentID may be empty.
func (a *App) CommentOn(fileID, content, parentID string) (*model.Comment, error) {
	return a.service.Comment(fileID, content, parentID)
}

// Users returns every known identity.
func (a *App) Users() ([]*model.User, error) {
	return a.service.Users()
}

// Profile returns a user and their uploads. An empty userID resolves to the
// local identity.
func (a *App) Profile(userID string) (*model.User, []*model.ContentItem, error) {
	if userID == "" {
		user, err := a.service.Identity()
		if err != nil {
			return nil, nil, err
		}
		userID = user.ID
	}
	return a.service.Profile(userID)
}

// FetchMedia streams an item's binary payload to w.
func (a *App) FetchMedia(fileID string, w io.Writer) error {
	return a.service.FetchMedia(fileID, w)
}

// ExportTo writes a snapshot of all collections to the given path as JSON.
// When encrypt is true the snapshot is age-encrypted with the configured
// public key; keys must have been set up first.
func (a *App) ExportTo(path string, encrypt bool) error {
	if encrypt && !a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not configured; run `anonstream keys init` first")
	}

	snap, err := a.service.Export()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if encrypt {
		if err := a.encryptor.Encrypt(bytes.NewReader(data), f); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
	} else {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	return nil
}

// ImportFrom merges a snapshot file into the store, skipping records that
// already exist. Encrypted exports are detected by the age header and need
// the passphrase to unlock the private key. Returns the number of records
// added.
func (a *App) ImportFrom(path string, passphrase string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading import file: %w", err)
	}

	if isEncrypted(data) {
		if passphrase == "" {
			return 0, fmt.Errorf("import file is encrypted; a passphrase is required")
		}
		ctx, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return 0, fmt.Errorf("unlocking private key: %w", err)
		}

		var plain bytes.Buffer
		if err := ctx.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return 0, fmt.Errorf("decrypting snapshot: %w", err)
		}
		data = plain.Bytes()
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("decoding snapshot: %w", err)
	}

	return a.service.Import(&snap)
}

// isEncrypted reports whether data starts with the age format header.
func isEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte("age-encryption.org/")) ||
		bytes.HasPrefix(data, []byte("-----BEGIN AGE ENCRYPTED FILE-----"))
}

// Reset destructively clears every collection and purges the media vault.
// The CLI gates this behind a typed confirmation.
func (a *App) Reset() error {
	return a.service.Reset()
}

// SetupKeys generates the age key pair protecting encrypted exports.
func (a *App) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
