package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
)

// =========================================================================
// SESSION STORE TESTS
// =========================================================================

func TestSessionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := &model.Session{
		ID:        "sess-1",
		User:      model.SessionUser{ID: "u1", Username: "kestrel", Bio: "hovering"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := db.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.User.Username != "kestrel" || got.User.Bio != "hovering" {
		t.Errorf("User = %+v, want kestrel/hovering", got.User)
	}

	// Saving again replaces the snapshot.
	s.User.Bio = "diving"
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() update error = %v", err)
	}
	got, _ = db.GetSession(ctx, "sess-1")
	if got.User.Bio != "diving" {
		t.Errorf("Bio = %q, want %q", got.User.Bio, "diving")
	}

	if err := db.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := db.GetSession(ctx, "sess-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
	}
}

func TestGetSession_Expired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.SaveSession(ctx, &model.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	db.SaveSession(ctx, &model.Session{ID: "live", ExpiresAt: time.Now().Add(time.Hour)})

	if _, err := db.GetSession(ctx, "old"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession(expired) error = %v, want ErrNotFound", err)
	}

	db.SaveSession(ctx, &model.Session{ID: "old2", ExpiresAt: time.Now().Add(-time.Minute)})
	n, err := db.PurgeExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if _, err := db.GetSession(ctx, "live"); err != nil {
		t.Errorf("GetSession(live) error = %v", err)
	}
}

// =========================================================================
// WEBSITE SETTINGS TESTS
// =========================================================================

func TestWebsiteSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ws, err := db.GetWebsiteSettings(ctx)
	if err != nil {
		t.Fatalf("GetWebsiteSettings() error = %v", err)
	}
	if ws.Theme != "light" || ws.Language != "en" {
		t.Errorf("seeded settings = %s/%s, want light/en", ws.Theme, ws.Language)
	}

	if err := db.UpdateWebsiteSettings(ctx, "dark", "fr"); err != nil {
		t.Fatalf("UpdateWebsiteSettings() error = %v", err)
	}
	ws, _ = db.GetWebsiteSettings(ctx)
	if ws.Theme != "dark" || ws.Language != "fr" {
		t.Errorf("settings = %s/%s, want dark/fr", ws.Theme, ws.Language)
	}

	var rows int
	db.conn.QueryRow(`SELECT COUNT(*) FROM website_settings`).Scan(&rows)
	if rows != 1 {
		t.Errorf("website_settings rows = %d, want 1", rows)
	}
}

// =========================================================================
// NOTIFICATION QUERY TESTS
// =========================================================================

func TestRecentActivity_ExcludesOwnerAndCaps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestStudent(t, db, "owner")
	p := createTestPost(t, db, owner.ID, "popular")

	// The owner's own like and comment never count.
	db.TogglePostLike(ctx, p.ID, owner.ID)
	db.CreateComment(ctx, &model.Comment{PostID: p.ID, StudentID: owner.ID, Body: "me"})

	for _, name := range []string{"f1", "f2", "f3", "f4", "f5", "f6"} {
		fan := createTestStudent(t, db, name)
		db.TogglePostLike(ctx, p.ID, fan.ID)
		db.CreateComment(ctx, &model.Comment{PostID: p.ID, StudentID: fan.ID, Body: "hi from " + name})
	}

	likes, err := db.RecentLikes(ctx, owner.ID, 5)
	if err != nil {
		t.Fatalf("RecentLikes() error = %v", err)
	}
	if len(likes) != 5 {
		t.Fatalf("len(likes) = %d, want 5", len(likes))
	}
	if likes[0].Username != "f6" {
		t.Errorf("newest like by %q, want f6", likes[0].Username)
	}

	comments, err := db.RecentComments(ctx, owner.ID, 5)
	if err != nil {
		t.Fatalf("RecentComments() error = %v", err)
	}
	if len(comments) != 5 {
		t.Fatalf("len(comments) = %d, want 5", len(comments))
	}
	for _, c := range comments {
		if c.Username == "owner" {
			t.Error("RecentComments() included the owner's own comment")
		}
	}
}
