package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/repository"
	"github.com/sakif/bird-dropper/internal/repository/sqlite"
)

func newTestAccountService(db *sqlite.DB, store *memStore) *AccountService {
	return NewAccountService(db, db, store, newTestLogger())
}

// failingProfileRepo wraps a real repository but refuses profile image writes.
type failingProfileRepo struct {
	repository.StudentRepository
}

var errDBDown = errors.New("database unavailable")

func (failingProfileRepo) UpdateProfileImage(context.Context, string, string, string) error {
	return errDBDown
}

// =========================================================================
// BIO TESTS
// =========================================================================

func TestUpdateBio(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newMemStore())
	robin := registerStudent(t, db, "robin")

	s, err := svc.UpdateBio(context.Background(), robin.ID, "  I watch birds.  ")
	if err != nil {
		t.Fatalf("UpdateBio() error: %v", err)
	}
	if s.Bio != "I watch birds." {
		t.Errorf("Bio = %q, want %q", s.Bio, "I watch birds.")
	}
	if s.Username != "robin" || s.Email != robin.Email {
		t.Errorf("other fields changed: %q %q", s.Username, s.Email)
	}
}

func TestUpdateBio_Length(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newMemStore())
	robin := registerStudent(t, db, "robin")
	ctx := context.Background()

	// 500 multi-byte characters are fine: the limit counts characters.
	if _, err := svc.UpdateBio(ctx, robin.ID, strings.Repeat("é", MaxBioLength)); err != nil {
		t.Fatalf("UpdateBio(500 chars) error: %v", err)
	}

	_, err := svc.UpdateBio(ctx, robin.ID, strings.Repeat("a", MaxBioLength+1))
	wantErrIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// USER SETTINGS TESTS
// =========================================================================

func TestUpdateUserSettings(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newMemStore())
	robin := registerStudent(t, db, "robin")
	ctx := context.Background()

	s, err := svc.UpdateUserSettings(ctx, robin.ID, "America/Denver", false)
	if err != nil {
		t.Fatalf("UpdateUserSettings() error: %v", err)
	}
	if s.Timezone != "America/Denver" {
		t.Errorf("Timezone = %q, want %q", s.Timezone, "America/Denver")
	}
	if s.NotificationsEnabled {
		t.Error("NotificationsEnabled = true, want false")
	}

	tests := []string{"", "Mars/Olympus_Mons", "not a zone"}
	for _, tz := range tests {
		t.Run("invalid "+tz, func(t *testing.T) {
			_, err := svc.UpdateUserSettings(ctx, robin.ID, tz, true)
			wantErrIs(t, err, apperror.ErrValidation)
		})
	}

	// Rejected updates left the row alone.
	s, err = db.GetStudentByID(ctx, robin.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() error: %v", err)
	}
	if s.Timezone != "America/Denver" {
		t.Errorf("Timezone = %q after rejected updates", s.Timezone)
	}
}

// =========================================================================
// WEBSITE SETTINGS TESTS
// =========================================================================

func TestUpdateWebsiteSettings_RequiresAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newMemStore())
	robin := registerStudent(t, db, "robin")
	ctx := context.Background()

	err := svc.UpdateWebsiteSettings(ctx, robin.ID, "dark", "fr")
	wantErrIs(t, err, apperror.ErrForbidden)

	ws, err := svc.WebsiteSettings(ctx)
	if err != nil {
		t.Fatalf("WebsiteSettings() error: %v", err)
	}
	if ws.Theme != "light" || ws.Language != "en" {
		t.Errorf("settings = %s/%s, want light/en", ws.Theme, ws.Language)
	}
}

func TestUpdateWebsiteSettings_Admin(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newMemStore())
	ctx := context.Background()
	if err := newTestAuthService(db).EnsureAdmin(ctx, "admin@bird.com", "adminpass1", "admin"); err != nil {
		t.Fatalf("EnsureAdmin() error: %v", err)
	}
	admin, err := db.GetStudentByEmail(ctx, "admin@bird.com")
	if err != nil {
		t.Fatalf("GetStudentByEmail() error: %v", err)
	}

	if err := svc.UpdateWebsiteSettings(ctx, admin.ID, "Dark", "fr"); err != nil {
		t.Fatalf("UpdateWebsiteSettings() error: %v", err)
	}
	ws, err := svc.WebsiteSettings(ctx)
	if err != nil {
		t.Fatalf("WebsiteSettings() error: %v", err)
	}
	if ws.Theme != "dark" || ws.Language != "fr" {
		t.Errorf("settings = %s/%s, want dark/fr", ws.Theme, ws.Language)
	}

	tests := []struct {
		name, theme, language string
	}{
		{"bad theme", "neon", "en"},
		{"bad language", "light", "klingon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateWebsiteSettings(ctx, admin.ID, tt.theme, tt.language)
			wantErrIs(t, err, apperror.ErrValidation)
		})
	}
}

// =========================================================================
// PROFILE IMAGE TESTS
// =========================================================================

func TestUpdateProfileImage_ReplacesAndCleansUp(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	svc := newTestAccountService(db, store)
	robin := registerStudent(t, db, "robin")
	ctx := context.Background()

	first, err := svc.UpdateProfileImage(ctx, robin.ID, imageUpload("Me.JPG"))
	if err != nil {
		t.Fatalf("first UpdateProfileImage() error: %v", err)
	}
	if !strings.HasPrefix(first.ProfileImageKey, "profiles/"+robin.ID+"/") {
		t.Errorf("key = %q, want profiles/%s/ prefix", first.ProfileImageKey, robin.ID)
	}
	if first.ProfileImageURL != "/uploads/"+first.ProfileImageKey {
		t.Errorf("URL = %q", first.ProfileImageURL)
	}
	oldKey := first.ProfileImageKey

	second, err := svc.UpdateProfileImage(ctx, robin.ID, imageUpload("new me.png"))
	if err != nil {
		t.Fatalf("second UpdateProfileImage() error: %v", err)
	}
	if store.has(oldKey) {
		t.Error("old profile image should have been deleted")
	}
	if !store.has(second.ProfileImageKey) {
		t.Error("new profile image is missing from the store")
	}
	if store.count() != 1 {
		t.Errorf("store holds %d objects, want 1", store.count())
	}

	row, err := db.GetStudentByID(ctx, robin.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() error: %v", err)
	}
	if row.ProfileImageURL != second.ProfileImageURL {
		t.Errorf("row URL = %q, want %q", row.ProfileImageURL, second.ProfileImageURL)
	}
}

func TestUpdateProfileImage_RejectsNonImage(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	svc := newTestAccountService(db, store)
	robin := registerStudent(t, db, "robin")

	upload := imageUpload("notes.txt")
	upload.ContentType = "text/plain"
	_, err := svc.UpdateProfileImage(context.Background(), robin.ID, upload)
	wantErrIs(t, err, apperror.ErrValidation)
	if store.count() != 0 {
		t.Errorf("store holds %d objects, want 0", store.count())
	}
}

func TestUpdateProfileImage_TooLarge(t *testing.T) {
	db := newTestDB(t)
	svc := newTestAccountService(db, newMemStore())
	robin := registerStudent(t, db, "robin")

	upload := imageUpload("huge.jpg")
	upload.Size = MaxImageBytes + 1
	_, err := svc.UpdateProfileImage(context.Background(), robin.ID, upload)
	wantErrIs(t, err, apperror.ErrValidation)
}

func TestUpdateProfileImage_RowFailureRemovesNewObject(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	svc := NewAccountService(failingProfileRepo{db}, db, store, newTestLogger())
	robin := registerStudent(t, db, "robin")

	_, err := svc.UpdateProfileImage(context.Background(), robin.ID, imageUpload("me.jpg"))
	wantErrIs(t, err, errDBDown)
	if store.count() != 0 {
		t.Errorf("store holds %d objects after failed update, want 0", store.count())
	}
}

func TestUpdateProfileImage_StoreFailure(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	store.failPut = 1
	svc := newTestAccountService(db, store)
	robin := registerStudent(t, db, "robin")
	ctx := context.Background()

	_, err := svc.UpdateProfileImage(ctx, robin.ID, imageUpload("me.jpg"))
	wantErrIs(t, err, errStoreDown)

	row, err := db.GetStudentByID(ctx, robin.ID)
	if err != nil {
		t.Fatalf("GetStudentByID() error: %v", err)
	}
	if row.ProfileImageKey != "" {
		t.Errorf("row key = %q, want unchanged", row.ProfileImageKey)
	}
}
