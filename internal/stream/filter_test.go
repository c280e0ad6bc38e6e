package stream_test

import (
	"testing"
	"time"

	"anonstream/internal/model"
	"anonstream/internal/stream"
)

func feedFixture() []*model.ContentItem {
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	return []*model.ContentItem{
		{
			ID:      "f1",
			Title:   "Sunset over the bay",
			Tags:    []string{"nature", "photography"},
			Type:    model.TypeImage,
			Date:    base,
			Metrics: model.Metrics{Likes: 3},
		},
		{
			ID:      "f2",
			Title:   "Skate trick compilation",
			Tags:    []string{"sports"},
			Type:    model.TypeShortVideo,
			Date:    base.Add(24 * time.Hour),
			Metrics: model.Metrics{Likes: 10},
		},
		{
			ID:      "f3",
			Title:   "Documentary cut",
			Tags:    []string{"film"},
			Type:    model.TypeLongVideo,
			Date:    base.Add(48 * time.Hour),
			Metrics: model.Metrics{Likes: 5},
		},
		{
			ID:      "f4",
			Title:   "Notes on composting",
			Tags:    []string{"nature", "howto"},
			Type:    model.TypeText,
			Date:    base.Add(72 * time.Hour),
			Metrics: model.Metrics{Likes: 5},
		},
	}
}

func ids(items []*model.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestApply_Categories(t *testing.T) {
	t.Parallel()

	items := feedFixture()
	bookmarked := map[string]bool{"f1": true, "f4": true}

	tests := []struct {
		name     string
		category stream.Category
		want     []string
	}{
		{"all", stream.CategoryAll, []string{"f4", "f3", "f2", "f1"}},
		{"videos include both forms", stream.CategoryVideos, []string{"f3", "f2"}},
		{"photos", stream.CategoryPhotos, []string{"f1"}},
		{"text", stream.CategoryText, []string{"f4"}},
		{"favorites", stream.CategoryFavorites, []string{"f4", "f1"}},
		{"empty category means all", stream.Category(""), []string{"f4", "f3", "f2", "f1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := stream.Apply(items, stream.Filter{Category: tt.category}, bookmarked)
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("Apply() returned %v, want %v", gotIDs, tt.want)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("Apply()[%d] = %s, want %s", i, gotIDs[i], tt.want[i])
				}
			}
		})
	}
}

func TestApply_Search(t *testing.T) {
	t.Parallel()

	items := feedFixture()

	t.Run("matches title case-insensitively", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{Search: "SUNSET"}, nil)
		if len(got) != 1 || got[0].ID != "f1" {
			t.Errorf("Apply() = %v, want [f1]", ids(got))
		}
	})

	t.Run("matches tags", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{Search: "nature"}, nil)
		if len(got) != 2 {
			t.Fatalf("Apply() returned %d items, want 2", len(got))
		}
	})

	t.Run("no match returns empty", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{Search: "zzz"}, nil)
		if len(got) != 0 {
			t.Errorf("Apply() returned %d items, want 0", len(got))
		}
	})

	t.Run("search composes with category", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{Search: "nature", Category: stream.CategoryText}, nil)
		if len(got) != 1 || got[0].ID != "f4" {
			t.Errorf("Apply() = %v, want [f4]", ids(got))
		}
	})
}

func TestApply_Sorting(t *testing.T) {
	t.Parallel()

	items := feedFixture()

	t.Run("newest first by default", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{}, nil)
		if got[0].ID != "f4" || got[3].ID != "f1" {
			t.Errorf("Apply() order = %v, want newest first", ids(got))
		}
	})

	t.Run("oldest", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{Sort: stream.SortOldest}, nil)
		if got[0].ID != "f1" || got[3].ID != "f4" {
			t.Errorf("Apply() order = %v, want oldest first", ids(got))
		}
	})

	t.Run("popular is stable on ties", func(t *testing.T) {
		t.Parallel()

		got := stream.Apply(items, stream.Filter{Sort: stream.SortPopular}, nil)
		want := []string{"f2", "f3", "f4", "f1"}
		gotIDs := ids(got)
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Errorf("Apply()[%d] = %s, want %s", i, gotIDs[i], want[i])
			}
		}
	})
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	items := feedFixture()
	originalFirst := items[0].ID

	stream.Apply(items, stream.Filter{Sort: stream.SortPopular}, nil)

	if items[0].ID != originalFirst {
		t.Errorf("input slice was reordered: first = %s, want %s", items[0].ID, originalFirst)
	}
}
