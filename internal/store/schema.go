package store

// Schema is the full current schema, equivalent to running every migration
// against an empty database. Tests apply it directly instead of going
// through golang-migrate. Regenerate with `go generate ./internal/store`
// after adding a migration.
const Schema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    avatar_color TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE files (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    type TEXT NOT NULL DEFAULT 'unknown',
    media_ref TEXT NOT NULL DEFAULT '',
    thumbnail_ref TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    author_id TEXT NOT NULL,
    author_name TEXT NOT NULL DEFAULT '',
    date TIMESTAMP NOT NULL,
    likes INTEGER NOT NULL DEFAULT 0,
    views INTEGER NOT NULL DEFAULT 0,
    comments INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_files_type ON files (type);
CREATE INDEX idx_files_date ON files (date);
CREATE INDEX idx_files_likes ON files (likes);

CREATE TABLE comments (
    id TEXT PRIMARY KEY,
    file_id TEXT NOT NULL REFERENCES files (id),
    parent_id TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    author_id TEXT NOT NULL,
    author_name TEXT NOT NULL DEFAULT '',
    author_avatar TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMP NOT NULL,
    likes INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_comments_file_id ON comments (file_id);

CREATE TABLE interactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    file_id TEXT NOT NULL REFERENCES files (id),
    type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX idx_interactions_user_file_type ON interactions (user_id, file_id, type);

CREATE TABLE playlists (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    item_ids TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX idx_playlists_user_id ON playlists (user_id);
`
