// internal/repository/waitlist.go
package repository

import (
	"context"
	"database/sql"

	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/models"
)

type WaitlistRepository struct {
	db  DBTX
	now Clock
}

func NewWaitlistRepository(db DBTX) *WaitlistRepository {
	return &WaitlistRepository{db: db, now: utcNow}
}

func (r *WaitlistRepository) Create(ctx context.Context, in models.NewWaitlistEntry) (*models.WaitlistEntry, error) {
	query := `
		INSERT INTO waitlist_entries (email, feedback, desired_apps, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, feedback, desired_apps, created_at`

	entry, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, query,
		in.Email, nullString(in.Feedback), nullString(in.DesiredApps), r.now()))
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("create waitlist entry", err)
	}
	return entry, nil
}

func (r *WaitlistRepository) List(ctx context.Context) ([]models.WaitlistEntry, error) {
	query := `
		SELECT id, email, feedback, desired_apps, created_at
		FROM waitlist_entries
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list waitlist entries", err)
	}
	defer rows.Close()

	entries := make([]models.WaitlistEntry, 0)
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("list waitlist entries", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list waitlist entries", err)
	}
	return entries, nil
}

func scanWaitlistEntry(row rowScanner) (*models.WaitlistEntry, error) {
	var (
		e           models.WaitlistEntry
		feedback    sql.NullString
		desiredApps sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Email, &feedback, &desiredApps, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Feedback = stringPtr(feedback)
	e.DesiredApps = stringPtr(desiredApps)
	return &e, nil
}
