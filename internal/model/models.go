package model

import (
	"strings"
	"time"
)

// ContentType classifies an uploaded item. Videos are split into short and
// long form at upload time based on size.
type ContentType string

const (
	TypeImage      ContentType = "image"
	TypeShortVideo ContentType = "short-video"
	TypeLongVideo  ContentType = "long-video"
	TypeText       ContentType = "text"
	TypeUnknown    ContentType = "unknown"
)

// IsVideo reports whether the type is one of the video forms.
func (t ContentType) IsVideo() bool {
	return strings.Contains(string(t), "video")
}

// Metrics holds the derived aggregate counters for a content item.
// They are maintained by the interaction ledger and comment writes,
// never edited directly, and never negative.
type Metrics struct {
	Likes    int `json:"likes"`
	Views    int `json:"views"`
	Comments int `json:"comments"`
}

// Metric names a single counter within Metrics.
type Metric string

const (
	MetricLikes    Metric = "likes"
	MetricViews    Metric = "views"
	MetricComments Metric = "comments"
)

// ContentItem is a single piece of uploaded media or text and its metadata.
// MediaRef and ThumbnailRef are vault object keys; the binary payload itself
// lives in the vault, never in the store. Content carries the inline body for
// text items only. AuthorName is a snapshot taken at publish time and does
// not follow later profile updates.
type ContentItem struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Tags         []string    `json:"tags"`
	Type         ContentType `json:"type"`
	MediaRef     string      `json:"mediaRef,omitempty"`
	ThumbnailRef string      `json:"thumbnailRef,omitempty"`
	Content      string      `json:"content,omitempty"`
	AuthorID     string      `json:"authorId"`
	AuthorName   string      `json:"authorName"`
	Date         time.Time   `json:"date"`
	Metrics      Metrics     `json:"metrics"`
}

// User is the persistent anonymous identity. AvatarColor is either a CSS
// color token or an hsl() value generated at first launch.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarColor string    `json:"avatarColor"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Comment belongs to exactly one content item. ParentID optionally points at
// another comment, forming a reply tree. Author fields are snapshots taken at
// write time.
type Comment struct {
	ID           string    `json:"id"`
	FileID       string    `json:"fileId"`
	ParentID     string    `json:"parentId,omitempty"`
	Content      string    `json:"content"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	Timestamp    time.Time `json:"timestamp"`
	Likes        int       `json:"likes"`
}

// InteractionType is the kind of interaction a user can have with an item.
type InteractionType string

const (
	InteractionLike     InteractionType = "like"
	InteractionBookmark InteractionType = "bookmark"
	InteractionView     InteractionType = "view"
)

// Interaction records that a user liked, bookmarked, or viewed an item.
// At most one active record exists per (UserID, FileID, Type) tuple.
type Interaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	FileID    string          `json:"fileId"`
	Type      InteractionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// Snapshot is the portable, metadata-only export document. Binary payloads
// stay in the vault; only their keys travel with the snapshot.
type Snapshot struct {
	Version      int            `json:"version"`
	Date         time.Time      `json:"date"`
	Files        []*ContentItem `json:"files"`
	Comments     []*Comment     `json:"comments"`
	Interactions []*Interaction `json:"interactions"`
	Users        []*User        `json:"users"`
}

// Draft is a staged upload: metadata plus a reference to the media bytes
// sitting in the staging area, waiting to be published. Text drafts carry
// their body inline and have no media.
type Draft struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	Type        ContentType `json:"type"`
	Content     string      `json:"content,omitempty"`
	MediaName   string      `json:"mediaName,omitempty"`
	Size        int64       `json:"size"`
	StagedAt    time.Time   `json:"stagedAt"`
}
