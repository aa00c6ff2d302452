package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
)

func createTestItems(t *testing.T, db *DB, userID string, keys ...string) []*model.CollectionItem {
	t.Helper()
	items := make([]*model.CollectionItem, len(keys))
	for i, k := range keys {
		items[i] = &model.CollectionItem{UserID: userID, ImageURL: "/uploads/" + k, ImageKey: k}
	}
	if err := db.CreateCollectionItems(context.Background(), items); err != nil {
		t.Fatalf("CreateCollectionItems() error = %v", err)
	}
	return items
}

func TestCreateCollectionItems_AllOrNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestStudent(t, db, "gull")

	items := createTestItems(t, db, owner.ID, "a.jpg", "b.jpg")
	for _, it := range items {
		if it.ID == "" {
			t.Error("CreateCollectionItems() did not set ID")
		}
	}

	// The second item references a missing user, so the whole batch rolls back.
	bad := []*model.CollectionItem{
		{UserID: owner.ID, ImageURL: "/c", ImageKey: "c.jpg"},
		{UserID: "ghost", ImageURL: "/d", ImageKey: "d.jpg"},
	}
	if err := db.CreateCollectionItems(ctx, bad); err == nil {
		t.Fatal("CreateCollectionItems() with unknown user should fail")
	}

	list, err := db.ListCollection(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListCollection() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len(list) = %d, want 2 (failed batch must not leave rows)", len(list))
	}
}

func TestCollectionOwnership(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestStudent(t, db, "gull")
	intruder := createTestStudent(t, db, "skua")
	item := createTestItems(t, db, owner.ID, "mine.jpg")[0]

	if err := db.UpdateCollectionDescription(ctx, item.ID, intruder.ID, "hacked"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateCollectionDescription() by intruder error = %v, want ErrNotFound", err)
	}
	if _, err := db.DeleteCollectionItem(ctx, item.ID, intruder.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteCollectionItem() by intruder error = %v, want ErrNotFound", err)
	}

	if err := db.UpdateCollectionDescription(ctx, item.ID, owner.ID, "sunset"); err != nil {
		t.Fatalf("UpdateCollectionDescription() error = %v", err)
	}
	list, _ := db.ListCollection(ctx, owner.ID)
	if len(list) != 1 || list[0].Description != "sunset" {
		t.Fatalf("list = %+v, want one item described %q", list, "sunset")
	}

	key, err := db.DeleteCollectionItem(ctx, item.ID, owner.ID)
	if err != nil {
		t.Fatalf("DeleteCollectionItem() error = %v", err)
	}
	if key != "mine.jpg" {
		t.Errorf("returned key = %q, want %q", key, "mine.jpg")
	}
	list, _ = db.ListCollection(ctx, owner.ID)
	if len(list) != 0 {
		t.Errorf("len(list) after delete = %d, want 0", len(list))
	}
}

func TestToggleCollectionLike(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestStudent(t, db, "gull")
	fan := createTestStudent(t, db, "tern")
	item := createTestItems(t, db, owner.ID, "x.jpg")[0]

	first, err := db.ToggleCollectionLike(ctx, item.ID, fan.ID)
	if err != nil {
		t.Fatalf("ToggleCollectionLike() error = %v", err)
	}
	if !first.Liked || first.Likes != 1 {
		t.Errorf("first = %+v, want {Liked:true Likes:1}", first)
	}

	list, _ := db.ListCollection(ctx, owner.ID)
	if list[0].Likes != 1 {
		t.Errorf("listed Likes = %d, want 1", list[0].Likes)
	}

	second, _ := db.ToggleCollectionLike(ctx, item.ID, fan.ID)
	if second.Liked || second.Likes != 0 {
		t.Errorf("second = %+v, want {Liked:false Likes:0}", second)
	}

	if _, err := db.ToggleCollectionLike(ctx, "missing", fan.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleCollectionLike(missing) error = %v, want ErrNotFound", err)
	}
}
