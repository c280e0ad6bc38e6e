package stream

import (
	"io"

	"anonstream/internal/model"
)

// Store is the persistent document store backing all collections.
// Implementations must keep the derived metrics consistent with the
// interaction and comment records inside a single transaction per mutation.
type Store interface {
	// User operations

	// GetUser returns a user by id, or ErrNotFound.
	GetUser(id string) (*model.User, error)

	// PutUser inserts or replaces a user record.
	PutUser(u *model.User) error

	// DeleteUser removes a user record. Deleting a missing id is a no-op.
	DeleteUser(id string) error

	// ListUsers returns all users ordered by creation time.
	ListUsers() ([]*model.User, error)

	// File operations

	// CreateFile persists a new content item. The caller assigns the id and
	// stamps author and date; metrics start at zero.
	CreateFile(item *model.ContentItem) error

	// GetFile returns a content item by id, or ErrNotFound.
	GetFile(id string) (*model.ContentItem, error)

	// ListFiles returns all content items, newest first. Rows written before
	// the metrics columns existed come back with zeroed metrics.
	ListFiles() ([]*model.ContentItem, error)

	// ListFilesByAuthor returns one author's items, newest first.
	ListFilesByAuthor(authorID string) ([]*model.ContentItem, error)

	// AdjustMetric moves a single counter by delta, clamped at zero.
	// Returns ErrNotFound for a missing id.
	AdjustMetric(fileID string, metric model.Metric, delta int) error

	// Comment operations

	// AddComment inserts a comment and bumps the item's comment counter in
	// the same transaction. Returns ErrNotFound if the item is missing.
	AddComment(c *model.Comment) error

	// ListComments returns all comments for an item, oldest first.
	ListComments(fileID string) ([]*model.Comment, error)

	// Interaction operations

	// GetInteraction returns the active record for an exact
	// (userID, fileID, type) tuple, or nil if there is none.
	GetInteraction(userID, fileID string, typ model.InteractionType) (*model.Interaction, error)

	// ToggleInteraction flips the state of the tuple carried by rec.
	// If no active record exists, rec is inserted and the call returns true;
	// otherwise the existing record is deleted by its own id and the call
	// returns false. The like and view counters move with the toggle in the
	// same transaction. Returns ErrNotFound if the item is missing.
	ToggleInteraction(rec *model.Interaction) (bool, error)

	// ListInteractionsByUser returns all active records for a user via a
	// single composite-index range scan.
	ListInteractionsByUser(userID string) ([]*model.Interaction, error)

	// Backup operations

	// Snapshot reads every collection in one consistent transaction.
	Snapshot() (*model.Snapshot, error)

	// RestoreSnapshot inserts records whose ids are not already present,
	// all in one transaction. Returns the number of records inserted.
	RestoreSnapshot(snap *model.Snapshot) (int, error)

	// ResetAll clears every collection. All-or-nothing: a partial clear
	// rolls back and reports failure.
	ResetAll() error

	// Close closes the underlying database.
	Close() error
}

// MediaVault stores the binary payloads referenced by content items.
// Keys follow the upload convention "uploads/{userID}/{timestamp}_{itemID}".
// All operations stream through io.Reader/io.Writer.
type MediaVault interface {
	// Put stores an object under key. size is the number of bytes that will
	// be read from r. A full backend surfaces ErrQuotaExceeded.
	Put(key string, r io.Reader, size int64) error

	// Get retrieves an object by key and writes it to w.
	Get(key string, w io.Writer) error

	// Delete removes an object. Deleting a missing key is a no-op.
	Delete(key string) error

	// Purge removes every object in the vault.
	Purge() error

	// ValidateSetup verifies the vault is accessible and writable.
	ValidateSetup() error
}

// StagingArea queues drafts between the upload step and publishing.
// It enforces a maximum total size so a large batch cannot fill the disk.
type StagingArea interface {
	// Stage adds a draft to the queue. r carries the media bytes and may be
	// nil for text drafts.
	Stage(draft *model.Draft, r io.Reader) error

	// List returns the queued drafts, oldest first.
	List() ([]*model.Draft, error)

	// Count returns the number of queued drafts.
	Count() (int, error)

	// ProcessNext hands the oldest draft and its media to fn. The draft is
	// removed only after fn returns nil; on error it stays queued for retry.
	// Returns ErrNotFound if the queue is empty.
	ProcessNext(fn func(draft *model.Draft, media io.Reader) error) error
}

// IdentityCache is the fast local cache for the anonymous identity.
// It is authoritative between profile updates.
type IdentityCache interface {
	// Load returns the cached identity, or (nil, nil) when none exists.
	Load() (*model.User, error)

	// Save persists the identity atomically.
	Save(u *model.User) error
}

// Logger provides structured logging for the service layer.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Encryptor protects exported snapshots. Encryption uses the public key only;
// decryption unlocks the private key with a passphrase for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `anonstream keys init`.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of an import session. The unlocked key is never written to disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
