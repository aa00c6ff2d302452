package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/bird-dropper/internal/apperror"
	"github.com/sakif/bird-dropper/internal/model"
	"github.com/sakif/bird-dropper/internal/repository"
)

// compile-time check that *DB implements repository.CollectionRepository
var _ repository.CollectionRepository = (*DB)(nil)

// CreateCollectionItems inserts a batch of gallery items in one transaction.
// Either every item is stored or none is; IDs and timestamps are set in place.
func (db *DB) CreateCollectionItems(ctx context.Context, items []*model.CollectionItem) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning collection tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO collections (id, user_id, image_url, image_key, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing collection insert: %w", err)
	}
	defer stmt.Close()

	now := db.now()
	for _, item := range items {
		item.ID = xid.New().String()
		item.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.UserID,
			item.ImageURL,
			item.ImageKey,
			item.Description,
			item.CreatedAt,
		); err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NotFound("user", item.UserID)
			}
			return fmt.Errorf("sqlite: inserting collection item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing collection items: %w", err)
	}
	return nil
}

// ListCollection returns a user's gallery newest first with like counts.
func (db *DB) ListCollection(ctx context.Context, userID string) ([]model.CollectionItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.image_url, c.image_key, c.description, c.created_at,
		        (SELECT COUNT(*) FROM collection_likes cl WHERE cl.collection_id = c.id)
		 FROM collections c
		 WHERE c.user_id = ?
		 ORDER BY c.created_at DESC, c.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing collection: %w", err)
	}
	defer rows.Close()

	items := []model.CollectionItem{}
	for rows.Next() {
		var it model.CollectionItem
		if err := rows.Scan(
			&it.ID,
			&it.UserID,
			&it.ImageURL,
			&it.ImageKey,
			&it.Description,
			&it.CreatedAt,
			&it.Likes,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning collection item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating collection: %w", err)
	}
	return items, nil
}

// DeleteCollectionItem removes an item owned by userID and returns its
// storage key so the caller can remove the object afterwards.
//
// OWNERSHIP IN THE WHERE CLAUSE:
// "WHERE id = ? AND user_id = ?" checks existence and ownership in one step.
// No row back means one of them failed; both are reported as NotFound.
func (db *DB) DeleteCollectionItem(ctx context.Context, id, userID string) (string, error) {
	var key string
	err := db.conn.QueryRowContext(ctx,
		`DELETE FROM collections WHERE id = ? AND user_id = ? RETURNING image_key`,
		id, userID,
	).Scan(&key)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotFound("collection item", id)
		}
		return "", fmt.Errorf("sqlite: deleting collection item %s: %w", id, err)
	}
	return key, nil
}

// UpdateCollectionDescription edits an item owned by userID.
func (db *DB) UpdateCollectionDescription(ctx context.Context, id, userID, description string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE collections SET description = ? WHERE id = ? AND user_id = ?`,
		description, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating collection item %s: %w", id, err)
	}
	return expectOneRow(res, apperror.NotFound("collection item", id))
}

// ToggleCollectionLike flips the (item, student) like, exactly like posts.
func (db *DB) ToggleCollectionLike(ctx context.Context, collectionID, studentID string) (model.LikeResult, error) {
	return db.toggleLike(ctx, collectionLikes, collectionID, studentID)
}
