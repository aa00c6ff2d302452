package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.SessionStore
var _ repository.SessionStore = (*DB)(nil)

// SaveSession upserts a session. The user snapshot is stored as a JSON blob;
// it is only ever read back whole.
func (db *DB) SaveSession(ctx context.Context, s *model.Session) error {
	data, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("sqlite: encoding session %s: %w", s.ID, err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		s.ID, string(data), s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession loads a live session. Expired rows are treated as missing and
// removed on the way out.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s    = model.Session{ID: id}
		data string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT data, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&data, &s.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	if s.Expired(db.now()) {
		if err := db.DeleteSession(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.NotFound("session", id)
	}

	if err := json.Unmarshal([]byte(data), &s.User); err != nil {
		return nil, fmt.Errorf("sqlite: decoding session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a session. Deleting an unknown id is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes every expired session and reports how many.
func (db *DB) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, db.now())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging sessions: %w", err)
	}
	return res.RowsAffected()
}
