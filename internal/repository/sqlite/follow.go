package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.FollowRepository
var _ repository.FollowRepository = (*DB)(nil)

// Follow creates the follower → followee edge. Following twice is a no-op.
// An unknown followee is NotFound; following yourself is a validation error
// (the table's CHECK constraint backs this up).
func (db *DB) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return apperror.ValidationFailed("user_id", "You cannot follow yourself")
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID, db.now(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", followeeID)
		}
		return fmt.Errorf("sqlite: following %s: %w", followeeID, err)
	}
	return nil
}

// Unfollow removes the edge if present. Removing a missing edge is not an error.
func (db *DB) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unfollowing %s: %w", followeeID, err)
	}
	return nil
}

// ListFollowing returns the users studentID follows.
func (db *DB) ListFollowing(ctx context.Context, studentID string) ([]model.UserSummary, error) {
	return db.listUsers(ctx,
		`SELECT s.id, s.username, s.first_name, s.last_name, s.profile_image_url
		 FROM follows f JOIN students s ON s.id = f.followee_id
		 WHERE f.follower_id = ?
		 ORDER BY s.username`,
		studentID,
	)
}

// ListFollowers returns the users following studentID.
func (db *DB) ListFollowers(ctx context.Context, studentID string) ([]model.UserSummary, error) {
	return db.listUsers(ctx,
		`SELECT s.id, s.username, s.first_name, s.last_name, s.profile_image_url
		 FROM follows f JOIN students s ON s.id = f.follower_id
		 WHERE f.followee_id = ?
		 ORDER BY s.username`,
		studentID,
	)
}

func (db *DB) listUsers(ctx context.Context, query string, args ...any) ([]model.UserSummary, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.UserSummary{}
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.ProfileImageURL); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// SearchStudents finds usernames containing query, case-insensitively,
// excluding the viewer. Each hit says whether the viewer already follows it.
//
// SQLite's LIKE is case-insensitive for ASCII. The wildcard characters in the
// user's query are escaped so "a_b" matches literally.
func (db *DB) SearchStudents(ctx context.Context, viewerID, query string, limit int) ([]model.UserSearchResult, error) {
	pattern := "%" + escapeLike(query) + "%"

	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.id, s.username, s.first_name, s.last_name, s.profile_image_url,
		        EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = ? AND f.followee_id = s.id)
		 FROM students s
		 WHERE s.id <> ? AND s.username LIKE ? ESCAPE '\'
		 ORDER BY s.username
		 LIMIT ?`,
		viewerID, viewerID, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	results := []model.UserSearchResult{}
	for rows.Next() {
		var r model.UserSearchResult
		if err := rows.Scan(
			&r.ID,
			&r.Username,
			&r.FirstName,
			&r.LastName,
			&r.ProfileImageURL,
			&r.IsFollowing,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating search results: %w", err)
	}
	return results, nil
}

// IsFollowing reports whether the edge follower → followee exists.
func (db *DB) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow: %w", err)
	}
	return true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
