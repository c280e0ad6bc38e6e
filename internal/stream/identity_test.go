package stream_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"anonstream/internal/model"
	"anonstream/internal/stream"
	"anonstream/internal/testutil"
)

func TestService_Identity(t *testing.T) {
	t.Run("creates identity on first call", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		user, err := fx.Service.Identity()
		if err != nil {
			t.Fatalf("Identity() error = %v", err)
		}

		if !strings.HasPrefix(user.DisplayName, "User_") {
			t.Errorf("DisplayName = %s, want User_ prefix", user.DisplayName)
		}
		if !strings.HasPrefix(user.AvatarColor, "hsl(") {
			t.Errorf("AvatarColor = %s, want hsl() value", user.AvatarColor)
		}
		if !user.CreatedAt.Equal(fx.Clock.Now()) {
			t.Errorf("CreatedAt = %v, want %v", user.CreatedAt, fx.Clock.Now())
		}

		// The new identity is in both the store and the cache.
		stored, err := fx.Store.GetUser(user.ID)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if stored.DisplayName != user.DisplayName {
			t.Errorf("stored DisplayName = %s, want %s", stored.DisplayName, user.DisplayName)
		}

		cached, err := fx.Cache.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cached == nil || cached.ID != user.ID {
			t.Error("cache does not hold the new identity")
		}
	})

	t.Run("second call returns same identity", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		first, err := fx.Service.Identity()
		if err != nil {
			t.Fatalf("Identity() error = %v", err)
		}
		second, err := fx.Service.Identity()
		if err != nil {
			t.Fatalf("Identity() error = %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("second Identity() = %s, want %s", second.ID, first.ID)
		}
	})

	t.Run("no orphaned store row when cache write fails", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		failing := &failAfterLoadCache{inner: fx.Cache}
		svc := stream.NewService(fx.Store, fx.Staging, fx.Vault, failing,
			stream.NewNopLogger(), fx.Clock, fx.IDGen)

		if _, err := svc.Identity(); err == nil {
			t.Fatal("Identity() error = nil, want cache failure")
		}

		users, err := fx.Store.ListUsers()
		if err != nil {
			t.Fatalf("ListUsers() error = %v", err)
		}
		if len(users) != 0 {
			t.Fatalf("store holds %d users after failed creation, want 0", len(users))
		}

		// A later call with a healthy cache mints exactly one identity.
		if _, err := fx.Service.Identity(); err != nil {
			t.Fatalf("Identity() error = %v", err)
		}
		users, _ = fx.Store.ListUsers()
		if len(users) != 1 {
			t.Errorf("store holds %d users, want 1", len(users))
		}
	})

	t.Run("cache is authoritative", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		seeded := &model.User{ID: "u-cached", DisplayName: "Cached", CreatedAt: fx.Clock.Now()}
		if err := fx.Cache.Save(seeded); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		user, err := fx.Service.Identity()
		if err != nil {
			t.Fatalf("Identity() error = %v", err)
		}
		if user.ID != "u-cached" {
			t.Errorf("Identity() = %s, want the cached identity", user.ID)
		}
	})
}

func TestService_UpdateProfile(t *testing.T) {
	t.Run("partial update keeps other fields", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		original, err := fx.Service.Identity()
		if err != nil {
			t.Fatalf("Identity() error = %v", err)
		}

		updated, err := fx.Service.UpdateProfile(stream.ProfileUpdate{DisplayName: "StreamFan"})
		if err != nil {
			t.Fatalf("UpdateProfile() error = %v", err)
		}
		if updated.DisplayName != "StreamFan" {
			t.Errorf("DisplayName = %s, want StreamFan", updated.DisplayName)
		}
		if updated.AvatarColor != original.AvatarColor {
			t.Errorf("AvatarColor changed: %s, want %s", updated.AvatarColor, original.AvatarColor)
		}

		// Both layers observe the update.
		stored, _ := fx.Store.GetUser(original.ID)
		if stored.DisplayName != "StreamFan" {
			t.Errorf("store DisplayName = %s, want StreamFan", stored.DisplayName)
		}
		cached, _ := fx.Cache.Load()
		if cached.DisplayName != "StreamFan" {
			t.Errorf("cache DisplayName = %s, want StreamFan", cached.DisplayName)
		}
	})

	t.Run("rejects blank display name", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		_, err := fx.Service.UpdateProfile(stream.ProfileUpdate{DisplayName: "   "})
		var verr *stream.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("UpdateProfile() error = %v, want ValidationError", err)
		}
	})

	t.Run("author snapshots on old uploads stay as written", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)
		fileID := publishOne(t, fx, "before rename")

		if _, err := fx.Service.UpdateProfile(stream.ProfileUpdate{DisplayName: "NewName"}); err != nil {
			t.Fatalf("UpdateProfile() error = %v", err)
		}

		item, err := fx.Service.Get(fileID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item.AuthorName == "NewName" {
			t.Error("author snapshot followed the rename; it should stay as written")
		}
	})

	t.Run("store rolls back when cache write fails", func(t *testing.T) {
		fx := testutil.NewServiceFixture(t)

		original, err := fx.Service.Identity()
		if err != nil {
			t.Fatalf("Identity() error = %v", err)
		}

		failing := &failAfterLoadCache{inner: fx.Cache}
		svc := stream.NewService(fx.Store, fx.Staging, fx.Vault, failing,
			stream.NewNopLogger(), fx.Clock, fx.IDGen)

		if _, err := svc.UpdateProfile(stream.ProfileUpdate{DisplayName: "Ghost"}); err == nil {
			t.Fatal("UpdateProfile() error = nil, want cache failure")
		}

		stored, err := fx.Store.GetUser(original.ID)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if stored.DisplayName != original.DisplayName {
			t.Errorf("store DisplayName = %s after rollback, want %s",
				stored.DisplayName, original.DisplayName)
		}
	})
}

// failAfterLoadCache serves loads but refuses every save.
type failAfterLoadCache struct {
	inner stream.IdentityCache
}

func (c *failAfterLoadCache) Load() (*model.User, error) { return c.inner.Load() }
func (c *failAfterLoadCache) Save(*model.User) error {
	return fmt.Errorf("disk full")
}
