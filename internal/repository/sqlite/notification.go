package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.NotificationRepository
var _ repository.NotificationRepository = (*DB)(nil)

// RecentLikes returns the newest likes on ownerID's posts by other users.
func (db *DB) RecentLikes(ctx context.Context, ownerID string, limit int) ([]model.LikeActivity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.post_id, s.username, l.created_at
		 FROM likes l
		 JOIN posts p    ON p.id = l.post_id
		 JOIN students s ON s.id = l.student_id
		 WHERE p.student_id = ? AND l.student_id <> ?
		 ORDER BY l.created_at DESC
		 LIMIT ?`,
		ownerID, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent likes: %w", err)
	}
	defer rows.Close()

	var out []model.LikeActivity
	for rows.Next() {
		var a model.LikeActivity
		if err := rows.Scan(&a.PostID, &a.Username, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning like activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecentComments returns the newest comments on ownerID's posts by other users.
func (db *DB) RecentComments(ctx context.Context, ownerID string, limit int) ([]model.CommentActivity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.post_id, s.username, c.body, c.created_at
		 FROM comments c
		 JOIN posts p    ON p.id = c.post_id
		 JOIN students s ON s.id = c.student_id
		 WHERE p.student_id = ? AND c.student_id <> ?
		 ORDER BY c.created_at DESC
		 LIMIT ?`,
		ownerID, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent comments: %w", err)
	}
	defer rows.Close()

	var out []model.CommentActivity
	for rows.Next() {
		var a model.CommentActivity
		if err := rows.Scan(&a.PostID, &a.Username, &a.Body, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
