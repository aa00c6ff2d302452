package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/realtime"
	"github.com/sakif/bird-dropper/internal/repository"
	"github.com/sakif/bird-dropper/internal/storage"
)

// Collection upload limits.
const (
	MaxCollectionFiles   = 10
	MaxDescriptionLength = 500
)

// CollectionService manages each user's personal photo gallery.
type CollectionService struct {
	items    repository.CollectionRepository
	store    storage.Store
	notifier Broadcaster
	logger   *slog.Logger
	now      func() time.Time
}

// NewCollectionService creates a CollectionService. notifier receives an
// event after every like toggle, the same as for posts.
func NewCollectionService(items repository.CollectionRepository, store storage.Store, notifier Broadcaster, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		items:    items,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload stores 1 to 10 images and records them as one batch.
//
// ALL OR NOTHING:
// Every file is validated before anything is stored. The objects are then
// stored one by one; if any Put fails, or the single insert transaction
// fails, every object stored so far is deleted again.
func (s *CollectionService) Upload(ctx context.Context, userID string, files []Upload) ([]*model.CollectionItem, error) {
	if len(files) == 0 {
		return nil, apperror.ValidationFailed("images", "Select at least one image")
	}
	if len(files) > MaxCollectionFiles {
		return nil, apperror.ValidationFailed("images",
			fmt.Sprintf("You can upload at most %d images at once", MaxCollectionFiles))
	}
	for _, f := range files {
		if err := validateImage("images", f); err != nil {
			return nil, err
		}
	}

	now := s.now()
	items := make([]*model.CollectionItem, 0, len(files))
	keys := uniqueKeys(userID, files, now)

	for i, f := range files {
		url, err := s.store.Put(ctx, keys[i], f.Body, f.Size, f.ContentType)
		if err != nil {
			s.discardAll(ctx, items)
			return nil, fmt.Errorf("storing collection image: %w", err)
		}
		items = append(items, &model.CollectionItem{
			UserID:   userID,
			ImageURL: url,
			ImageKey: keys[i],
		})
	}

	if err := s.items.CreateCollectionItems(ctx, items); err != nil {
		s.discardAll(ctx, items)
		return nil, fmt.Errorf("saving collection items: %w", err)
	}

	s.logger.Info("collection upload",
		slog.String("user", userID),
		slog.Int("count", len(items)),
	)
	return items, nil
}

// List returns userID's gallery newest first.
func (s *CollectionService) List(ctx context.Context, userID string) ([]model.CollectionItem, error) {
	items, err := s.items.ListCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing collection: %w", err)
	}
	return items, nil
}

// Delete removes one of userID's items, then its image (best effort).
// Someone else's item is reported as NotFound.
func (s *CollectionService) Delete(ctx context.Context, userID, itemID string) error {
	key, err := s.items.DeleteCollectionItem(ctx, itemID, userID)
	if err != nil {
		return fmt.Errorf("deleting collection item: %w", err)
	}
	discardObject(ctx, s.store, s.logger, key)
	return nil
}

// UpdateDescription edits the caption of one of userID's items.
func (s *CollectionService) UpdateDescription(ctx context.Context, userID, itemID, description string) error {
	description = strings.TrimSpace(description)
	if tooLong(description, MaxDescriptionLength) {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength))
	}
	if err := s.items.UpdateCollectionDescription(ctx, itemID, userID, description); err != nil {
		return fmt.Errorf("updating collection description: %w", err)
	}
	return nil
}

// ToggleLike flips userID's like on a collection item.
func (s *CollectionService) ToggleLike(ctx context.Context, userID, itemID string) (model.LikeResult, error) {
	res, err := s.items.ToggleCollectionLike(ctx, itemID, userID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggling collection like: %w", err)
	}
	s.notifier.Broadcast(realtime.EventNotification)
	return res, nil
}

func (s *CollectionService) discardAll(ctx context.Context, items []*model.CollectionItem) {
	for _, it := range items {
		discardObject(ctx, s.store, s.logger, it.ImageKey)
	}
}

// uniqueKeys builds one object key per file. Files of one batch share a
// timestamp, so a repeated sanitised name gets a counter prefix.
func uniqueKeys(userID string, files []Upload, at time.Time) []string {
	keys := make([]string, len(files))
	seen := make(map[string]bool, len(files))
	for i, f := range files {
		key := storage.ObjectKey(storage.PrefixCollections, userID, f.Filename, at)
		for n := 1; seen[key]; n++ {
			key = storage.ObjectKey(storage.PrefixCollections, userID, fmt.Sprintf("%d-%s", n, f.Filename), at)
		}
		seen[key] = true
		keys[i] = key
	}
	return keys
}
