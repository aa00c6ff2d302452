package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
	"github.com/sakif/bird-dropper/internal/storage"
)

// MaxBioLength is the longest bio accepted, in characters.
const MaxBioLength = 500

// Allowed values for the global website settings.
var (
	Themes    = []string{"light", "dark"}
	Languages = []string{"en", "es", "fr", "de"}
)

// AccountService edits an existing account and the global website settings.
//
// Every mutating method returns the updated *model.Student so the handler
// can refresh the session snapshot without another lookup.
type AccountService struct {
	students repository.StudentRepository
	settings repository.SettingsRepository
	store    storage.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(
	students repository.StudentRepository,
	settings repository.SettingsRepository,
	store storage.Store,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		students: students,
		settings: settings,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// UpdateBio replaces the bio. Other profile fields are untouched.
func (s *AccountService) UpdateBio(ctx context.Context, userID, bio string) (*model.Student, error) {
	bio = strings.TrimSpace(bio)
	if tooLong(bio, MaxBioLength) {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("Bio must be %d characters or less", MaxBioLength))
	}
	if err := s.students.UpdateBio(ctx, userID, bio); err != nil {
		return nil, fmt.Errorf("updating bio: %w", err)
	}
	return s.reload(ctx, userID)
}

// UpdateUserSettings stores the user's timezone and notification preference.
// The timezone must be an IANA name known to the Go runtime ("Europe/Paris").
func (s *AccountService) UpdateUserSettings(ctx context.Context, userID, timezone string, notifications bool) (*model.Student, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return nil, apperror.ValidationFailed("timezone", "Timezone is required")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, apperror.ValidationFailed("timezone", "Invalid timezone")
	}
	if err := s.students.UpdateUserSettings(ctx, userID, timezone, notifications); err != nil {
		return nil, fmt.Errorf("updating user settings: %w", err)
	}
	return s.reload(ctx, userID)
}

// WebsiteSettings returns the global settings row.
func (s *AccountService) WebsiteSettings(ctx context.Context) (*model.WebsiteSettings, error) {
	ws, err := s.settings.GetWebsiteSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading website settings: %w", err)
	}
	return ws, nil
}

// UpdateWebsiteSettings changes the global theme and language.
//
// PERMISSION:
// The settings are shared by every user, so only administrators may change
// them. The admin flag is read from the database, not from the session
// snapshot, so a revoked admin loses the right immediately.
func (s *AccountService) UpdateWebsiteSettings(ctx context.Context, actorID, theme, language string) error {
	actor, err := s.students.GetStudentByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("updating website settings: %w", err)
	}
	if !actor.IsAdmin {
		return apperror.Forbidden("Only administrators can change website settings")
	}

	theme = strings.ToLower(strings.TrimSpace(theme))
	language = strings.ToLower(strings.TrimSpace(language))
	if !slices.Contains(Themes, theme) {
		return apperror.ValidationFailed("theme", "Invalid theme")
	}
	if !slices.Contains(Languages, language) {
		return apperror.ValidationFailed("language", "Invalid language")
	}

	if err := s.settings.UpdateWebsiteSettings(ctx, theme, language); err != nil {
		return fmt.Errorf("updating website settings: %w", err)
	}
	s.logger.Info("website settings updated",
		slog.String("by", actorID),
		slog.String("theme", theme),
		slog.String("language", language),
	)
	return nil
}

// UpdateProfileImage replaces the profile picture.
//
// ORDER OF OPERATIONS:
//  1. Store the new object.
//  2. Point the row at it. On failure, delete the new object and stop.
//  3. Delete the old object, best effort.
//
// At no point does the row reference an object that does not exist.
func (s *AccountService) UpdateProfileImage(ctx context.Context, userID string, img Upload) (*model.Student, error) {
	if err := validateImage("profile_image", img); err != nil {
		return nil, err
	}

	student, err := s.students.GetStudentByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("updating profile image: %w", err)
	}
	oldKey := student.ProfileImageKey

	key := storage.ObjectKey(storage.PrefixProfiles, userID, img.Filename, s.now())
	url, err := s.store.Put(ctx, key, img.Body, img.Size, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("storing profile image: %w", err)
	}

	if err := s.students.UpdateProfileImage(ctx, userID, url, key); err != nil {
		discardObject(ctx, s.store, s.logger, key)
		return nil, fmt.Errorf("updating profile image: %w", err)
	}
	if oldKey != "" && oldKey != key {
		discardObject(ctx, s.store, s.logger, oldKey)
	}

	student.ProfileImageURL = url
	student.ProfileImageKey = key
	return student, nil
}

func (s *AccountService) reload(ctx context.Context, userID string) (*model.Student, error) {
	student, err := s.students.GetStudentByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reloading student %s: %w", userID, err)
	}
	return student, nil
}
