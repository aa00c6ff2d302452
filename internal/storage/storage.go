// Package storage keeps uploaded images in an object store.
//
// Two backends implement Store: Local writes under a directory served by the
// app itself, MinIO talks to any S3-compatible server. Callers only ever hold
// a key (for deletion) and the public URL Put returns.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrInvalidKey is returned for keys that would escape the store's namespace.
var ErrInvalidKey = errors.New("storage: invalid key")

// Store is an object store addressed by slash-separated keys.
type Store interface {
	// Put stores size bytes from r under key and returns the public URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key prefixes per kind of upload.
const (
	PrefixPosts       = "posts"
	PrefixProfiles    = "profiles"
	PrefixCollections = "collections"
)

// ObjectKey builds "{prefix}/{userID}/{unix_millis}-{sanitised filename}".
func ObjectKey(prefix, userID, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s", prefix, userID, at.UnixMilli(), SanitizeFilename(filename))
}

// IsImage reports whether a declared content type is an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
