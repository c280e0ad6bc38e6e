package store_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"anonstream/internal/model"
	"anonstream/internal/store"
	"anonstream/internal/stream"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// newTestStore opens an in-memory store and returns it with the raw
// connection for direct SQL assertions.
func newTestStore(t *testing.T) (*store.SQLiteStore, *sql.DB) {
	t.Helper()

	db, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	if _, err := db.Exec(store.Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	st := store.NewSQLiteStoreFromDB(db)
	t.Cleanup(func() { st.Close() })
	return st, db
}

func seedFile(t *testing.T, st *store.SQLiteStore, id string) *model.ContentItem {
	t.Helper()

	item := &model.ContentItem{
		ID:       id,
		Title:    "item " + id,
		Tags:     []string{"tag1"},
		Type:     model.TypeImage,
		AuthorID: "u-1",
		Date:     testTime,
	}
	if err := st.CreateFile(item); err != nil {
		t.Fatalf("CreateFile(%s) error = %v", id, err)
	}
	return item
}

func TestSQLiteStore_Users(t *testing.T) {
	st, _ := newTestStore(t)

	u := &model.User{ID: "u-1", DisplayName: "User_u-1", AvatarColor: "hsl(10, 70%, 50%)", CreatedAt: testTime}
	if err := st.PutUser(u); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}

	got, err := st.GetUser("u-1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.DisplayName != "User_u-1" {
		t.Errorf("DisplayName = %s, want User_u-1", got.DisplayName)
	}

	t.Run("put is an upsert", func(t *testing.T) {
		u.DisplayName = "Renamed"
		if err := st.PutUser(u); err != nil {
			t.Fatalf("PutUser() error = %v", err)
		}
		got, _ := st.GetUser("u-1")
		if got.DisplayName != "Renamed" {
			t.Errorf("DisplayName = %s, want Renamed", got.DisplayName)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := st.GetUser("nope")
		if !errors.Is(err, stream.ErrNotFound) {
			t.Errorf("GetUser() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_Files(t *testing.T) {
	st, _ := newTestStore(t)

	seedFile(t, st, "f-1")

	got, err := st.GetFile("f-1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if got.Title != "item f-1" {
		t.Errorf("Title = %s, want item f-1", got.Title)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "tag1" {
		t.Errorf("Tags = %v, want [tag1]", got.Tags)
	}
	if got.Metrics.Likes != 0 {
		t.Errorf("new item likes = %d, want 0", got.Metrics.Likes)
	}

	t.Run("duplicate id fails", func(t *testing.T) {
		err := st.CreateFile(&model.ContentItem{ID: "f-1", Title: "dup", AuthorID: "u-1", Date: testTime})
		if err == nil {
			t.Error("CreateFile() with duplicate id succeeded, want error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := st.GetFile("nope")
		if !errors.Is(err, stream.ErrNotFound) {
			t.Errorf("GetFile() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list by author", func(t *testing.T) {
		if err := st.CreateFile(&model.ContentItem{ID: "f-other", Title: "x", AuthorID: "u-2", Date: testTime}); err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}

		items, err := st.ListFilesByAuthor("u-1")
		if err != nil {
			t.Fatalf("ListFilesByAuthor() error = %v", err)
		}
		for _, item := range items {
			if item.AuthorID != "u-1" {
				t.Errorf("item %s has author %s, want u-1", item.ID, item.AuthorID)
			}
		}
	})
}

func TestSQLiteStore_LegacyRows(t *testing.T) {
	st, db := newTestStore(t)

	// A row written before tags were JSON-encoded reads back untagged
	_, err := db.Exec(
		`INSERT INTO files (id, title, tags, author_id, date) VALUES ('old', 'legacy', '', 'u-1', ?)`,
		testTime)
	if err != nil {
		t.Fatalf("raw insert failed: %v", err)
	}

	got, err := st.GetFile("old")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if len(got.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", got.Tags)
	}
	if got.Metrics.Likes != 0 || got.Metrics.Views != 0 {
		t.Errorf("metrics = %+v, want zeroed", got.Metrics)
	}
}

func TestSQLiteStore_AdjustMetric(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "f-1")

	if err := st.AdjustMetric("f-1", model.MetricLikes, 2); err != nil {
		t.Fatalf("AdjustMetric() error = %v", err)
	}
	got, _ := st.GetFile("f-1")
	if got.Metrics.Likes != 2 {
		t.Errorf("likes = %d, want 2", got.Metrics.Likes)
	}

	t.Run("clamps at zero", func(t *testing.T) {
		if err := st.AdjustMetric("f-1", model.MetricLikes, -5); err != nil {
			t.Fatalf("AdjustMetric() error = %v", err)
		}
		got, _ := st.GetFile("f-1")
		if got.Metrics.Likes != 0 {
			t.Errorf("likes = %d after clamped decrement, want 0", got.Metrics.Likes)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := st.AdjustMetric("nope", model.MetricViews, 1)
		if !errors.Is(err, stream.ErrNotFound) {
			t.Errorf("AdjustMetric() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		err := st.AdjustMetric("f-1", model.Metric("bogus"), 1)
		if err == nil {
			t.Error("AdjustMetric() with unknown metric succeeded, want error")
		}
	})
}

func TestSQLiteStore_Comments(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "f-1")

	c := &model.Comment{
		ID: "c-1", FileID: "f-1", Content: "hello",
		AuthorID: "u-1", AuthorName: "User_u-1", AuthorAvatar: "hsl(1, 70%, 50%)",
		Timestamp: testTime,
	}
	if err := st.AddComment(c); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	// Counter moved in the same transaction
	item, _ := st.GetFile("f-1")
	if item.Metrics.Comments != 1 {
		t.Errorf("comments counter = %d, want 1", item.Metrics.Comments)
	}

	comments, err := st.ListComments("f-1")
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].AuthorAvatar != "hsl(1, 70%, 50%)" {
		t.Errorf("ListComments() = %+v, want the stored comment with avatar", comments)
	}

	t.Run("missing file leaves nothing behind", func(t *testing.T) {
		err := st.AddComment(&model.Comment{ID: "c-2", FileID: "nope", Content: "x", AuthorID: "u-1", Timestamp: testTime})
		if !errors.Is(err, stream.ErrNotFound) {
			t.Fatalf("AddComment() error = %v, want ErrNotFound", err)
		}

		comments, _ := st.ListComments("nope")
		if len(comments) != 0 {
			t.Error("comment row exists for missing file")
		}
	})
}

func TestSQLiteStore_ToggleInteraction(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "f-1")

	rec := func(id string) *model.Interaction {
		return &model.Interaction{ID: id, UserID: "u-1", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime}
	}

	active, err := st.ToggleInteraction(rec("i-1"))
	if err != nil {
		t.Fatalf("ToggleInteraction() error = %v", err)
	}
	if !active {
		t.Error("first toggle = false, want true")
	}

	item, _ := st.GetFile("f-1")
	if item.Metrics.Likes != 1 {
		t.Errorf("likes = %d, want 1", item.Metrics.Likes)
	}

	got, err := st.GetInteraction("u-1", "f-1", model.InteractionLike)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if got == nil || got.ID != "i-1" {
		t.Fatalf("GetInteraction() = %+v, want record i-1", got)
	}

	t.Run("second toggle removes by exact id", func(t *testing.T) {
		active, err := st.ToggleInteraction(rec("i-2"))
		if err != nil {
			t.Fatalf("ToggleInteraction() error = %v", err)
		}
		if active {
			t.Error("second toggle = true, want false")
		}

		got, err := st.GetInteraction("u-1", "f-1", model.InteractionLike)
		if err != nil {
			t.Fatalf("GetInteraction() error = %v", err)
		}
		if got != nil {
			t.Errorf("record still present after toggle off: %+v", got)
		}

		item, _ := st.GetFile("f-1")
		if item.Metrics.Likes != 0 {
			t.Errorf("likes = %d after toggle off, want 0", item.Metrics.Likes)
		}
	})

	t.Run("bookmark moves no counter", func(t *testing.T) {
		bm := &model.Interaction{ID: "i-3", UserID: "u-1", FileID: "f-1", Type: model.InteractionBookmark, Timestamp: testTime}
		if _, err := st.ToggleInteraction(bm); err != nil {
			t.Fatalf("ToggleInteraction() error = %v", err)
		}
		item, _ := st.GetFile("f-1")
		if item.Metrics.Likes != 0 || item.Metrics.Views != 0 {
			t.Errorf("metrics = %+v after bookmark, want zero", item.Metrics)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		missing := &model.Interaction{ID: "i-4", UserID: "u-1", FileID: "nope", Type: model.InteractionLike, Timestamp: testTime}
		_, err := st.ToggleInteraction(missing)
		if !errors.Is(err, stream.ErrNotFound) {
			t.Errorf("ToggleInteraction() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_ListInteractionsByUser(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "f-1")
	seedFile(t, st, "f-2")

	recs := []*model.Interaction{
		{ID: "i-1", UserID: "u-1", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime},
		{ID: "i-2", UserID: "u-1", FileID: "f-2", Type: model.InteractionBookmark, Timestamp: testTime},
		{ID: "i-3", UserID: "u-2", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime},
	}
	for _, r := range recs {
		if _, err := st.ToggleInteraction(r); err != nil {
			t.Fatalf("ToggleInteraction(%s) error = %v", r.ID, err)
		}
	}

	got, err := st.ListInteractionsByUser("u-1")
	if err != nil {
		t.Fatalf("ListInteractionsByUser() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListInteractionsByUser() returned %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.UserID != "u-1" {
			t.Errorf("record %s belongs to %s, want u-1", r.ID, r.UserID)
		}
	}
}

func TestSQLiteStore_Snapshot(t *testing.T) {
	st, _ := newTestStore(t)
	seedFile(t, st, "f-1")
	if err := st.PutUser(&model.User{ID: "u-1", DisplayName: "User_u-1", CreatedAt: testTime}); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	if err := st.AddComment(&model.Comment{ID: "c-1", FileID: "f-1", Content: "x", AuthorID: "u-1", Timestamp: testTime}); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if _, err := st.ToggleInteraction(&model.Interaction{ID: "i-1", UserID: "u-1", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime}); err != nil {
		t.Fatalf("ToggleInteraction() error = %v", err)
	}

	snap, err := st.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Files) != 1 || len(snap.Comments) != 1 || len(snap.Interactions) != 1 || len(snap.Users) != 1 {
		t.Errorf("snapshot sizes = %d/%d/%d/%d, want 1 each",
			len(snap.Files), len(snap.Comments), len(snap.Interactions), len(snap.Users))
	}
	// The counter travels with the file record
	if snap.Files[0].Metrics.Likes != 1 || snap.Files[0].Metrics.Comments != 1 {
		t.Errorf("snapshot metrics = %+v, want likes=1 comments=1", snap.Files[0].Metrics)
	}
}

func TestSQLiteStore_RestoreSnapshot(t *testing.T) {
	source, _ := newTestStore(t)
	seedFile(t, source, "f-1")
	if err := source.PutUser(&model.User{ID: "u-1", DisplayName: "User_u-1", CreatedAt: testTime}); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	snap, err := source.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	dest, _ := newTestStore(t)
	// Pre-existing record with the same id is kept, not overwritten
	if err := dest.CreateFile(&model.ContentItem{ID: "f-1", Title: "local copy", AuthorID: "u-9", Date: testTime}); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	added, err := dest.RestoreSnapshot(snap)
	if err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}
	if added != 1 { // only the user; the file id already existed
		t.Errorf("RestoreSnapshot() added = %d, want 1", added)
	}

	got, _ := dest.GetFile("f-1")
	if got.Title != "local copy" {
		t.Errorf("existing record was overwritten: title = %s", got.Title)
	}
}

func TestSQLiteStore_RestoreSnapshot_RecomputesMetrics(t *testing.T) {
	// A second user's records arriving for a file this store already holds
	// must land in the counters too, keeping metrics.likes equal to the
	// number of active like records.
	source, _ := newTestStore(t)
	seedFile(t, source, "f-1")
	if err := source.PutUser(&model.User{ID: "u-2", DisplayName: "User_u-2", CreatedAt: testTime}); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	if _, err := source.ToggleInteraction(&model.Interaction{ID: "i-src", UserID: "u-2", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime}); err != nil {
		t.Fatalf("ToggleInteraction() error = %v", err)
	}
	if err := source.AddComment(&model.Comment{ID: "c-src", FileID: "f-1", Content: "hi", AuthorID: "u-2", Timestamp: testTime}); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	snap, err := source.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	dest, db := newTestStore(t)
	seedFile(t, dest, "f-1")
	if _, err := dest.ToggleInteraction(&model.Interaction{ID: "i-dst", UserID: "u-1", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime}); err != nil {
		t.Fatalf("ToggleInteraction() error = %v", err)
	}

	if _, err := dest.RestoreSnapshot(snap); err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}

	var likeRecords int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM interactions WHERE file_id = 'f-1' AND type = 'like'`).Scan(&likeRecords); err != nil {
		t.Fatalf("counting like records: %v", err)
	}
	if likeRecords != 2 {
		t.Fatalf("like records = %d, want 2", likeRecords)
	}

	got, err := dest.GetFile("f-1")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if got.Metrics.Likes != likeRecords {
		t.Errorf("metrics.likes = %d, want %d (the like record count)", got.Metrics.Likes, likeRecords)
	}
	if got.Metrics.Comments != 1 {
		t.Errorf("metrics.comments = %d, want 1", got.Metrics.Comments)
	}
}

func TestSQLiteStore_ResetAll(t *testing.T) {
	st, db := newTestStore(t)
	seedFile(t, st, "f-1")
	if err := st.PutUser(&model.User{ID: "u-1", DisplayName: "User_u-1", CreatedAt: testTime}); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	if err := st.AddComment(&model.Comment{ID: "c-1", FileID: "f-1", Content: "x", AuthorID: "u-1", Timestamp: testTime}); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if _, err := st.ToggleInteraction(&model.Interaction{ID: "i-1", UserID: "u-1", FileID: "f-1", Type: model.InteractionLike, Timestamp: testTime}); err != nil {
		t.Fatalf("ToggleInteraction() error = %v", err)
	}

	if err := st.ResetAll(); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}

	for _, table := range []string{"users", "files", "comments", "interactions"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s has %d rows after reset, want 0", table, count)
		}
	}
}
