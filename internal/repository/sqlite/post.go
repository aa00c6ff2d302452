package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.PostRepository
var _ repository.PostRepository = (*DB)(nil)

const defaultFeedLimit = 50

// CreatePost inserts a post. The ID and CreatedAt are set in place.
// A StudentID that does not exist is reported as NotFound.
func (db *DB) CreatePost(ctx context.Context, p *model.Post) error {
	p.ID = xid.New().String()
	p.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, student_id, image_url, image_key, caption, location, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.StudentID,
		p.ImageURL,
		p.ImageKey,
		p.Caption,
		p.Location,
		p.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", p.StudentID)
		}
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

// GetPostByID retrieves a single post.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, student_id, image_url, image_key, caption, location, created_at
		 FROM posts WHERE id = ?`,
		id,
	).Scan(
		&p.ID,
		&p.StudentID,
		&p.ImageURL,
		&p.ImageKey,
		&p.Caption,
		&p.Location,
		&p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return &p, nil
}

// DeletePost removes a post. Its likes and comments go with it through
// ON DELETE CASCADE. Ownership is checked by the caller.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return expectOneRow(res, apperror.NotFound("post", id))
}

// ListFeed returns posts newest first, each with its author, like count,
// whether the viewer liked it, and its comments oldest first.
//
// ONE QUERY, NO N+1:
// Like counts and comment lists come from correlated subqueries. The comment
// list is built by SQLite itself with json_group_array and decoded here, so a
// page of 50 posts is one round trip instead of 101.
func (db *DB) ListFeed(ctx context.Context, opts repository.FeedOptions) ([]model.FeedPost, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`
		SELECT p.id, p.student_id, p.image_url, p.image_key, p.caption, p.location, p.created_at,
		       s.username, s.profile_image_url,
		       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		       EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.student_id = ?),
		       (SELECT json_group_array(json_object(
		                   'id', c.id,
		                   'post_id', c.post_id,
		                   'student_id', c.student_id,
		                   'username', cs.username,
		                   'body', c.body,
		                   'created_at', strftime('%Y-%m-%dT%H:%M:%SZ', c.created_at)
		               ) ORDER BY c.created_at, c.id)
		          FROM comments c JOIN students cs ON cs.id = c.student_id
		         WHERE c.post_id = p.id)
		FROM posts p
		JOIN students s ON s.id = p.student_id`)
	args = append(args, opts.ViewerID)

	// The following filter is a different query path: a join against the
	// viewer's outgoing edges rather than a WHERE on the author.
	if opts.FollowingOnly {
		query.WriteString(`
		JOIN follows f ON f.followee_id = p.student_id AND f.follower_id = ?`)
		args = append(args, opts.ViewerID)
	}
	if opts.AuthorID != "" {
		query.WriteString(`
		WHERE p.student_id = ?`)
		args = append(args, opts.AuthorID)
	}
	query.WriteString(`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?`)
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing feed: %w", err)
	}
	defer rows.Close()

	posts := []model.FeedPost{}
	for rows.Next() {
		var (
			fp       model.FeedPost
			comments string
		)
		if err := rows.Scan(
			&fp.ID,
			&fp.StudentID,
			&fp.ImageURL,
			&fp.ImageKey,
			&fp.Caption,
			&fp.Location,
			&fp.CreatedAt,
			&fp.Username,
			&fp.ProfileImageURL,
			&fp.Likes,
			&fp.LikedByViewer,
			&comments,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning feed row: %w", err)
		}
		fp.Comments = []model.Comment{}
		if err := json.Unmarshal([]byte(comments), &fp.Comments); err != nil {
			return nil, fmt.Errorf("sqlite: decoding comments for post %s: %w", fp.ID, err)
		}
		posts = append(posts, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating feed: %w", err)
	}
	return posts, nil
}

// TogglePostLike flips the (post, student) like and returns the new state.
func (db *DB) TogglePostLike(ctx context.Context, postID, studentID string) (model.LikeResult, error) {
	return db.toggleLike(ctx, postLikes, postID, studentID)
}

// CreateComment inserts a comment and fills in ID, CreatedAt and Username.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, student_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID,
		c.PostID,
		c.StudentID,
		c.Body,
		c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("post", c.PostID)
		}
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT username FROM students WHERE id = ?`, c.StudentID,
	).Scan(&c.Username)
	if err != nil {
		return fmt.Errorf("sqlite: reading comment author %s: %w", c.StudentID, err)
	}
	return nil
}

// GetCommentByID retrieves a comment with its author's username.
func (db *DB) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := db.conn.QueryRowContext(ctx,
		`SELECT c.id, c.post_id, c.student_id, s.username, c.body, c.created_at
		 FROM comments c JOIN students s ON s.id = c.student_id
		 WHERE c.id = ?`,
		id,
	).Scan(&c.ID, &c.PostID, &c.StudentID, &c.Username, &c.Body, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return &c, nil
}

// DeleteComment removes a comment. Ownership is checked by the caller.
func (db *DB) DeleteComment(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return expectOneRow(res, apperror.NotFound("comment", id))
}
