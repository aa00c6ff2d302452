package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
)

// likeTable describes one of the two like join tables. The names are
// constants from this file, never user input, so building SQL from them is safe.
type likeTable struct {
	resource     string // for NotFound messages
	parent       string // table being liked
	table        string // join table
	parentColumn string // join table column referencing parent.id
}

var (
	postLikes       = likeTable{resource: "post", parent: "posts", table: "likes", parentColumn: "post_id"}
	collectionLikes = likeTable{resource: "collection item", parent: "collections", table: "collection_likes", parentColumn: "collection_id"}
)

// toggleLike flips a like without a prior existence read.
//
// THE CONSTRAINT IS THE TOGGLE SIGNAL:
// The (parent, student) primary key makes a duplicate like impossible. We try
// the INSERT with ON CONFLICT DO NOTHING; one affected row means the like is new,
// zero means it already existed and must be removed. Two concurrent toggles can
// never both insert, and the count is read inside the same transaction.
func (db *DB) toggleLike(ctx context.Context, lt likeTable, parentID, studentID string) (model.LikeResult, error) {
	var result model.LikeResult

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("sqlite: beginning like tx: %w", err)
	}
	// Rollback after Commit is a no-op, so deferring it is always safe.
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, lt.parent), parentID,
	).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return result, apperror.NotFound(lt.resource, parentID)
		}
		return result, fmt.Errorf("sqlite: checking %s %s: %w", lt.resource, parentID, err)
	}

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, student_id, created_at) VALUES (?, ?, ?)
		             ON CONFLICT (%s, student_id) DO NOTHING`,
			lt.table, lt.parentColumn, lt.parentColumn),
		parentID, studentID, db.now(),
	)
	if err != nil {
		return result, fmt.Errorf("sqlite: inserting like on %s %s: %w", lt.resource, parentID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	result.Liked = inserted == 1

	if !result.Liked {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND student_id = ?`, lt.table, lt.parentColumn),
			parentID, studentID,
		)
		if err != nil {
			return result, fmt.Errorf("sqlite: removing like on %s %s: %w", lt.resource, parentID, err)
		}
	}

	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, lt.table, lt.parentColumn), parentID,
	).Scan(&result.Likes)
	if err != nil {
		return result, fmt.Errorf("sqlite: counting likes on %s %s: %w", lt.resource, parentID, err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("sqlite: committing like: %w", err)
	}
	return result, nil
}
