package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anonstream/internal/model"
	"anonstream/internal/store/migrations"
	"anonstream/internal/stream"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the stream.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the store at path and brings the schema
// up to date. path can be a file path or ":memory:". Opening is idempotent
// and fails closed: a migration error aborts the open rather than leaving
// the store running on a partial schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}

	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection whose schema is already
// applied. Used by tests.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite defaults foreign keys to OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// User operations

func (s *SQLiteStore) GetUser(id string) (*model.User, error) {
	row := s.db.QueryRow(
		`SELECT id, display_name, avatar_color, created_at FROM users WHERE id = ?`, id)

	var u model.User
	if err := row.Scan(&u.ID, &u.DisplayName, &u.AvatarColor, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, stream.ErrNotFound)
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) PutUser(u *model.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, display_name, avatar_color, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   display_name = excluded.display_name,
		   avatar_color = excluded.avatar_color`,
		u.ID, u.DisplayName, u.AvatarColor, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUser(id string) error {
	if _, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers() ([]*model.User, error) {
	rows, err := s.db.Query(
		`SELECT id, display_name, avatar_color, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.AvatarColor, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// File operations

const fileColumns = `id, title, description, tags, type, media_ref, thumbnail_ref,
	content, author_id, author_name, date, likes, views, comments`

func (s *SQLiteStore) CreateFile(item *model.ContentItem) error {
	tags, err := encodeTags(item.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO files (`+fileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, tags, string(item.Type),
		item.MediaRef, item.ThumbnailRef, item.Content,
		item.AuthorID, item.AuthorName, item.Date,
		item.Metrics.Likes, item.Metrics.Views, item.Metrics.Comments)
	if err != nil {
		return fmt.Errorf("creating content item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFile(id string) (*model.ContentItem, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id)

	item, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("content item %s: %w", id, stream.ErrNotFound)
		}
		return nil, fmt.Errorf("finding content item: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) ListFiles() ([]*model.ContentItem, error) {
	return s.queryFiles(`SELECT ` + fileColumns + ` FROM files ORDER BY date DESC`)
}

func (s *SQLiteStore) ListFilesByAuthor(authorID string) ([]*model.ContentItem, error) {
	return s.queryFiles(
		`SELECT `+fileColumns+` FROM files WHERE author_id = ? ORDER BY date DESC`, authorID)
}

func (s *SQLiteStore) queryFiles(query string, args ...any) ([]*model.ContentItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing content items: %w", err)
	}
	defer rows.Close()

	var items []*model.ContentItem
	for rows.Next() {
		item, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) AdjustMetric(fileID string, metric model.Metric, delta int) error {
	column, err := metricColumn(metric)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE files SET `+column+` = MAX(0, `+column+` + ?) WHERE id = ?`,
		delta, fileID)
	if err != nil {
		return fmt.Errorf("adjusting %s: %w", metric, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjusting %s: %w", metric, err)
	}
	if affected == 0 {
		return fmt.Errorf("content item %s: %w", fileID, stream.ErrNotFound)
	}
	return nil
}

// metricColumn maps a metric to its column, rejecting anything else so the
// string concatenation above can never inject.
func metricColumn(metric model.Metric) (string, error) {
	switch metric {
	case model.MetricLikes:
		return "likes", nil
	case model.MetricViews:
		return "views", nil
	case model.MetricComments:
		return "comments", nil
	default:
		return "", fmt.Errorf("unknown metric: %s", metric)
	}
}

// Comment operations

func (s *SQLiteStore) AddComment(c *model.Comment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fileExists(tx, c.FileID); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO comments (id, file_id, parent_id, content, author_id,
		   author_name, author_avatar, timestamp, likes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FileID, c.ParentID, c.Content, c.AuthorID,
		c.AuthorName, c.AuthorAvatar, c.Timestamp, c.Likes)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE files SET comments = comments + 1 WHERE id = ?`, c.FileID); err != nil {
		return fmt.Errorf("bumping comment counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComments(fileID string) ([]*model.Comment, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, parent_id, content, author_id, author_name,
		   author_avatar, timestamp, likes
		 FROM comments WHERE file_id = ? ORDER BY timestamp, id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.FileID, &c.ParentID, &c.Content, &c.AuthorID,
			&c.AuthorName, &c.AuthorAvatar, &c.Timestamp, &c.Likes); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// Interaction operations

func (s *SQLiteStore) GetInteraction(userID, fileID string, typ model.InteractionType) (*model.Interaction, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, file_id, type, timestamp
		 FROM interactions WHERE user_id = ? AND file_id = ? AND type = ?`,
		userID, fileID, string(typ))

	var rec model.Interaction
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.FileID, &rec.Type, &rec.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // no active record
		}
		return nil, fmt.Errorf("finding interaction: %w", err)
	}
	return &rec, nil
}

// ToggleInteraction flips an interaction inside one transaction:
// the exact-match record is located through the composite index and removed
// by its own id, or rec is inserted; the like/view counter moves in the same
// transaction so metrics always equal the record count.
func (s *SQLiteStore) ToggleInteraction(rec *model.Interaction) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fileExists(tx, rec.FileID); err != nil {
		return false, err
	}

	var existingID string
	err = tx.QueryRow(
		`SELECT id FROM interactions WHERE user_id = ? AND file_id = ? AND type = ?`,
		rec.UserID, rec.FileID, string(rec.Type)).Scan(&existingID)

	var active bool
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.Exec(
			`INSERT INTO interactions (id, user_id, file_id, type, timestamp)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.UserID, rec.FileID, string(rec.Type), rec.Timestamp)
		if err != nil {
			return false, fmt.Errorf("inserting interaction: %w", err)
		}
		active = true
	case err != nil:
		return false, fmt.Errorf("finding interaction: %w", err)
	default:
		if _, err := tx.Exec(`DELETE FROM interactions WHERE id = ?`, existingID); err != nil {
			return false, fmt.Errorf("deleting interaction: %w", err)
		}
		active = false
	}

	if column, ok := counterFor(rec.Type); ok {
		delta := -1
		if active {
			delta = 1
		}
		if _, err := tx.Exec(
			`UPDATE files SET `+column+` = MAX(0, `+column+` + ?) WHERE id = ?`,
			delta, rec.FileID); err != nil {
			return false, fmt.Errorf("moving %s counter: %w", column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return active, nil
}

// counterFor maps an interaction type to the files counter it drives.
// Bookmarks have no counter.
func counterFor(typ model.InteractionType) (string, bool) {
	switch typ {
	case model.InteractionLike:
		return "likes", true
	case model.InteractionView:
		return "views", true
	default:
		return "", false
	}
}

func (s *SQLiteStore) ListInteractionsByUser(userID string) ([]*model.Interaction, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, file_id, type, timestamp
		 FROM interactions WHERE user_id = ? ORDER BY file_id, type`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}
	defer rows.Close()

	var records []*model.Interaction
	for rows.Next() {
		var rec model.Interaction
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.FileID, &rec.Type, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Backup operations

func (s *SQLiteStore) Snapshot() (*model.Snapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	snap := &model.Snapshot{}

	rows, err := tx.Query(`SELECT ` + fileColumns + ` FROM files ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("reading files: %w", err)
	}
	for rows.Next() {
		item, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning content item: %w", err)
		}
		snap.Files = append(snap.Files, item)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.Query(
		`SELECT id, file_id, parent_id, content, author_id, author_name,
		   author_avatar, timestamp, likes FROM comments ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("reading comments: %w", err)
	}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.FileID, &c.ParentID, &c.Content, &c.AuthorID,
			&c.AuthorName, &c.AuthorAvatar, &c.Timestamp, &c.Likes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		snap.Comments = append(snap.Comments, &c)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.Query(
		`SELECT id, user_id, file_id, type, timestamp FROM interactions ORDER BY user_id, file_id, type`)
	if err != nil {
		return nil, fmt.Errorf("reading interactions: %w", err)
	}
	for rows.Next() {
		var rec model.Interaction
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.FileID, &rec.Type, &rec.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		snap.Interactions = append(snap.Interactions, &rec)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.Query(
		`SELECT id, display_name, avatar_color, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.AvatarColor, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		snap.Users = append(snap.Users, &u)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) RestoreSnapshot(snap *model.Snapshot) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	touched := make(map[string]bool)

	// Insertion order respects the foreign keys: users and files first.
	for _, u := range snap.Users {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO users (id, display_name, avatar_color, created_at)
			 VALUES (?, ?, ?, ?)`,
			u.ID, u.DisplayName, u.AvatarColor, u.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("restoring user %s: %w", u.ID, err)
		}
		added += affected(res)
	}

	for _, item := range snap.Files {
		tags, err := encodeTags(item.Tags)
		if err != nil {
			return 0, err
		}
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO files (`+fileColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Title, item.Description, tags, string(item.Type),
			item.MediaRef, item.ThumbnailRef, item.Content,
			item.AuthorID, item.AuthorName, item.Date,
			item.Metrics.Likes, item.Metrics.Views, item.Metrics.Comments)
		if err != nil {
			return 0, fmt.Errorf("restoring content item %s: %w", item.ID, err)
		}
		added += affected(res)
		touched[item.ID] = true
	}

	for _, c := range snap.Comments {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO comments (id, file_id, parent_id, content,
			   author_id, author_name, author_avatar, timestamp, likes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.FileID, c.ParentID, c.Content, c.AuthorID,
			c.AuthorName, c.AuthorAvatar, c.Timestamp, c.Likes)
		if err != nil {
			return 0, fmt.Errorf("restoring comment %s: %w", c.ID, err)
		}
		added += affected(res)
		touched[c.FileID] = true
	}

	for _, rec := range snap.Interactions {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO interactions (id, user_id, file_id, type, timestamp)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.UserID, rec.FileID, string(rec.Type), rec.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("restoring interaction %s: %w", rec.ID, err)
		}
		added += affected(res)
		touched[rec.FileID] = true
	}

	// A merged snapshot can add interaction and comment records to files that
	// already existed here, so the stored counters go stale. Recompute them
	// from the record counts for every file the snapshot touched.
	for fileID := range touched {
		_, err := tx.Exec(
			`UPDATE files SET
			   likes = (SELECT COUNT(*) FROM interactions WHERE file_id = files.id AND type = 'like'),
			   views = (SELECT COUNT(*) FROM interactions WHERE file_id = files.id AND type = 'view'),
			   comments = (SELECT COUNT(*) FROM comments WHERE file_id = files.id)
			 WHERE id = ?`,
			fileID)
		if err != nil {
			return 0, fmt.Errorf("recomputing metrics for %s: %w", fileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return added, nil
}

// ResetAll clears every collection in one transaction. Deletion order
// respects the foreign keys.
func (s *SQLiteStore) ResetAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"interactions", "comments", "playlists", "files", "users"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*model.ContentItem, error) {
	var (
		item model.ContentItem
		tags string
		typ  string
		date time.Time
	)
	err := row.Scan(&item.ID, &item.Title, &item.Description, &tags, &typ,
		&item.MediaRef, &item.ThumbnailRef, &item.Content,
		&item.AuthorID, &item.AuthorName, &date,
		&item.Metrics.Likes, &item.Metrics.Views, &item.Metrics.Comments)
	if err != nil {
		return nil, err
	}

	item.Type = model.ContentType(typ)
	item.Date = date
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		// Rows written before tags were JSON-encoded list as untagged.
		item.Tags = nil
	}
	return &item, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(data), nil
}

// fileExists verifies a content item exists inside a transaction, mapping a
// missing row to ErrNotFound.
func fileExists(tx *sql.Tx, fileID string) error {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM files WHERE id = ?`, fileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("content item %s: %w", fileID, stream.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking content item: %w", err)
	}
	return nil
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("reading rows: %w", err)
	}
	return rows.Close()
}

// Compile-time check that SQLiteStore implements the stream.Store interface.
var _ stream.Store = (*SQLiteStore)(nil)
