// internal/repository/favorite.go
package repository

import (
	"context"

	apperrors "affiliate-marketplace/internal/common/errors"
)

// FavoriteRepository stores (owner, listing) bookmarks.
type FavoriteRepository struct {
	db  DBTX
	now Clock
}

func NewFavoriteRepository(db DBTX) *FavoriteRepository {
	return &FavoriteRepository{db: db, now: utcNow}
}

// ListByOwner returns the favorited listing ids in the order they were added.
func (r *FavoriteRepository) ListByOwner(ctx context.Context, ownerID string) ([]int64, error) {
	query := `
		SELECT listing_id
		FROM favorites
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list favorites", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("list favorites", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list favorites", err)
	}
	return ids, nil
}

// Toggle flips the favorite state and reports the new one. The probe and the
// write are separate statements; the unique (owner_id, listing_id)
// constraint catches a concurrent insert, which is reported as favorited.
// A listing that does not exist yields ErrNotFound.
func (r *FavoriteRepository) Toggle(ctx context.Context, ownerID string, listingID int64) (bool, error) {
	var exists bool
	probe := `SELECT EXISTS(SELECT 1 FROM favorites WHERE owner_id = $1 AND listing_id = $2)`
	if err := r.db.QueryRowContext(ctx, probe, ownerID, listingID).Scan(&exists); err != nil {
		return false, apperrors.NewDatabaseQueryFailedError("probe favorite", err)
	}

	if exists {
		del := `DELETE FROM favorites WHERE owner_id = $1 AND listing_id = $2`
		if _, err := r.db.ExecContext(ctx, del, ownerID, listingID); err != nil {
			return false, apperrors.NewDatabaseQueryFailedError("delete favorite", err)
		}
		return false, nil
	}

	ins := `INSERT INTO favorites (owner_id, listing_id, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, ins, ownerID, listingID, r.now()); err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return true, nil
		case pgForeignKeyViolation:
			return false, ErrNotFound
		}
		return false, apperrors.NewDatabaseQueryFailedError("insert favorite", err)
	}
	return true, nil
}
