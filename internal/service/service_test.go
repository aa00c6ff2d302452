package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository/sqlite"
)

// =========================================================================
// TEST DOUBLES
// =========================================================================
//
// Services run against a real in-memory SQLite database: the repository is
// cheap to create and its constraint behaviour (UNIQUE, foreign keys) is part
// of what the services rely on. Only the object store and the broadcaster are
// faked, so tests can look inside them and make them fail on demand.

// memStore is an in-memory storage.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string]string
	puts    int
	failPut int // fail the Nth Put (1-based); 0 never fails
}

var errStoreDown = errors.New("store unavailable")

func newMemStore() *memStore {
	return &memStore{objects: make(map[string]string)}
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut > 0 && m.puts == m.failPut {
		return "", errStoreDown
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = string(b)
	return "/uploads/" + key, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// recorder is a Broadcaster that remembers every event.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Broadcast(eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestAuthService uses bcrypt's minimum cost so tests stay fast.
func newTestAuthService(db *sqlite.DB) *AuthService {
	return NewAuthService(db, auth.NewPasswordServiceWithCost(4), newTestLogger())
}

// registerStudent signs up username with password "password123".
func registerStudent(t *testing.T, db *sqlite.DB, username string) *model.Student {
	t.Helper()
	s, err := newTestAuthService(db).Register(context.Background(), Registration{
		FirstName:       "Test",
		LastName:        "Birder",
		Email:           username + "@bird.com",
		Username:        username,
		Password:        "password123",
		ConfirmPassword: "password123",
	})
	if err != nil {
		t.Fatalf("failed to register %q: %v", username, err)
	}
	return s
}

// imageUpload builds a small JPEG-typed upload.
func imageUpload(filename string) Upload {
	const body = "fake-jpeg-bytes"
	return Upload{
		Filename:    filename,
		ContentType: "image/jpeg",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

// wantErrIs fails the test unless errors.Is(err, target).
func wantErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
