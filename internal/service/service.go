// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes SQLite
//
// Services take repository interfaces, never *sqlite.DB, and return
// apperror values that handlers translate into status codes. Nothing in this
// package imports net/http.
//
// COMPENSATING ACTIONS:
// Uploads touch two systems (object storage and the database) that share no
// transaction. Every operation that writes both stores the object first, then
// writes the row, and deletes the object again if the row cannot be written.
// Cleanup of objects that are no longer referenced is best effort: a failure
// is logged and the operation still succeeds.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/storage"
)

// MaxImageBytes caps every uploaded image.
const MaxImageBytes = 10 << 20 // 10 MiB

// Upload is one file taken from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Broadcaster pushes a content-free event to every connected client.
// *realtime.Hub implements it.
type Broadcaster interface {
	Broadcast(eventType string)
}

// validateImage checks a single upload against the image rules.
// field names the form field in the error.
func validateImage(field string, u Upload) error {
	if u.Body == nil {
		return apperror.ValidationFailed(field, "An image is required")
	}
	if !storage.IsImage(u.ContentType) {
		return apperror.ValidationFailed(field, "Only image files are allowed")
	}
	if u.Size > MaxImageBytes {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("Images must be %d MB or smaller", MaxImageBytes>>20))
	}
	return nil
}

// tooLong reports whether s has more than max characters (not bytes).
func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

// discardObject deletes a stored object that is no longer referenced.
// Failures only leave an orphan behind, so they are logged, not returned.
func discardObject(ctx context.Context, store storage.Store, logger *slog.Logger, key string) {
	if key == "" {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete stored object",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
