// Package redis implements repository.SessionStore on top of Redis.
//
// Sessions are stored as JSON strings under "session:{id}" with a TTL equal
// to the time left before they expire, so Redis evicts them on its own and
// there is nothing to purge.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *SessionStore implements repository.SessionStore
var _ repository.SessionStore = (*SessionStore)(nil)

const keyPrefix = "session:"

// SessionStore keeps sessions in Redis.
type SessionStore struct {
	rdb *goredis.Client
}

// New connects to the Redis server described by url
// (e.g. "redis://:password@localhost:6379/0") and checks it answers.
func New(ctx context.Context, url string) (*SessionStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parsing url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: pinging server: %w", err)
	}
	return &SessionStore{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Close releases the connection pool.
func (s *SessionStore) Close() error {
	return s.rdb.Close()
}

// SaveSession writes the session with a TTL matching its expiry.
// An already expired session is simply removed.
func (s *SessionStore) SaveSession(ctx context.Context, sess *model.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.DeleteSession(ctx, sess.ID)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis: encoding session %s: %w", sess.ID, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: saving session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession loads a session; a missing key means NotFound.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("redis: getting session: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("redis: decoding session: %w", err)
	}
	if sess.Expired(time.Now()) {
		return nil, apperror.NotFound("session", id)
	}
	return &sess, nil
}

// DeleteSession removes a session. Deleting a missing key is not an error.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis: deleting session: %w", err)
	}
	return nil
}
