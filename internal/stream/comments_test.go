package stream_test

import (
	"errors"
	"testing"
	"time"

	"anonstream/internal/model"
	"anonstream/internal/stream"
	"anonstream/internal/testutil"
)

func TestService_Comment(t *testing.T) {
	t.Run("adds comment and bumps counter", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)
		fileID := publishOne(t, fx, "post")

		c, err := fx.Service.Comment(fileID, "nice shot", "")
		if err != nil {
			t.Fatalf("Comment() error = %v", err)
		}

		user, _ := fx.Service.Identity()
		if c.AuthorID != user.ID {
			t.Errorf("AuthorID = %s, want %s", c.AuthorID, user.ID)
		}
		if c.AuthorAvatar != user.AvatarColor {
			t.Errorf("AuthorAvatar = %s, want the author's color snapshot", c.AuthorAvatar)
		}

		item, _ := fx.Service.Get(fileID)
		if item.Metrics.Comments != 1 {
			t.Errorf("comments counter = %d, want 1", item.Metrics.Comments)
		}
	})

	t.Run("rejects blank content", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)
		fileID := publishOne(t, fx, "post")

		_, err := fx.Service.Comment(fileID, "  ", "")
		var verr *stream.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Comment() error = %v, want ValidationError", err)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		_, err := fx.Service.Comment("nope", "hello", "")
		if !errors.Is(err, stream.ErrNotFound) {
			t.Errorf("Comment() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_Threads(t *testing.T) {
	fx := testutil.NewServiceFixture(t)
	fileID := publishOne(t, fx, "post")

	root, err := fx.Service.Comment(fileID, "root", "")
	if err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	fx.Clock.Advance(time.Second)
	reply, err := fx.Service.Comment(fileID, "reply", root.ID)
	if err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	fx.Clock.Advance(time.Second)
	if _, err := fx.Service.Comment(fileID, "nested", reply.ID); err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	fx.Clock.Advance(time.Second)
	if _, err := fx.Service.Comment(fileID, "second root", ""); err != nil {
		t.Fatalf("Comment() error = %v", err)
	}

	threads, err := fx.Service.Threads(fileID)
	if err != nil {
		t.Fatalf("Threads() error = %v", err)
	}

	if len(threads) != 2 {
		t.Fatalf("Threads() returned %d roots, want 2", len(threads))
	}
	if threads[0].Comment.Content != "root" {
		t.Errorf("first root = %q, want %q", threads[0].Comment.Content, "root")
	}
	if len(threads[0].Replies) != 1 || threads[0].Replies[0].Comment.Content != "reply" {
		t.Fatalf("root has %d replies, want the reply", len(threads[0].Replies))
	}
	if len(threads[0].Replies[0].Replies) != 1 {
		t.Errorf("reply has %d replies, want the nested one", len(threads[0].Replies[0].Replies))
	}
}

func TestBuildThreads_OrphansSurfaceAsRoots(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	comments := []*model.Comment{
		{ID: "c1", Content: "top", Timestamp: now},
		{ID: "c2", ParentID: "gone", Content: "orphan", Timestamp: now.Add(time.Second)},
	}

	threads := stream.BuildThreads(comments)
	if len(threads) != 2 {
		t.Fatalf("BuildThreads() returned %d roots, want 2", len(threads))
	}
	if threads[1].Comment.ID != "c2" {
		t.Errorf("orphan did not surface as a root")
	}
}
