package stream

import (
	"sort"
	"strings"

	"anonstream/internal/model"
)

// Category selects a slice of the feed. People is resolved against the user
// list by the caller, not by Apply.
type Category string

const (
	CategoryAll       Category = "All"
	CategoryVideos    Category = "Videos"
	CategoryPhotos    Category = "Photos"
	CategoryText      Category = "Text"
	CategoryFavorites Category = "Favorites"
	CategoryPeople    Category = "People"
)

// SortOrder picks the feed ordering.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortPopular SortOrder = "popular"
)

// Filter is the full set of feed view parameters.
type Filter struct {
	Search   string
	Category Category
	Sort     SortOrder
}

// Apply filters, searches, and sorts the materialized content list.
// bookmarked is the current user's hydrated bookmark set, consulted only for
// the Favorites category. The function is pure: the input slice is never
// mutated, and ties keep their input order.
func Apply(items []*model.ContentItem, f Filter, bookmarked map[string]bool) []*model.ContentItem {
	out := make([]*model.ContentItem, 0, len(items))

	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, item := range items {
		if !matchesCategory(item, f.Category, bookmarked) {
			continue
		}
		if search != "" && !matchesSearch(item, search) {
			continue
		}
		out = append(out, item)
	}

	switch f.Sort {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Date.Before(out[j].Date)
		})
	case SortPopular:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Metrics.Likes > out[j].Metrics.Likes
		})
	case SortNewest:
		fallthrough
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Date.After(out[j].Date)
		})
	}

	return out
}

func matchesCategory(item *model.ContentItem, c Category, bookmarked map[string]bool) bool {
	switch c {
	case CategoryVideos:
		return item.Type.IsVideo()
	case CategoryPhotos:
		return item.Type == model.TypeImage
	case CategoryText:
		return item.Type == model.TypeText
	case CategoryFavorites:
		return bookmarked[item.ID]
	case CategoryAll, CategoryPeople, "":
		return true
	default:
		return true
	}
}

// matchesSearch does a case-insensitive substring match against the title or
// any tag. search must already be lowercased.
func matchesSearch(item *model.ContentItem, search string) bool {
	if strings.Contains(strings.ToLower(item.Title), search) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}
