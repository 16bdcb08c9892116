// internal/repository/listing.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/models"
)

const listingColumns = `id, owner_id, owner_contact, name, description, url, commission_structure,
	payment_terms, affiliate_signup_url, promo_materials, status, created_at, updated_at`

// ListingRepository stores affiliate listings.
type ListingRepository struct {
	db  DBTX
	now Clock
}

func NewListingRepository(db DBTX) *ListingRepository {
	return &ListingRepository{db: db, now: utcNow}
}

// WithClock replaces the timestamp source, for tests.
func (r *ListingRepository) WithClock(now Clock) *ListingRepository {
	r.now = now
	return r
}

// Create inserts a listing. An empty status is stored as pending.
func (r *ListingRepository) Create(ctx context.Context, in models.NewListing) (*models.Listing, error) {
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	now := r.now()

	query := `
		INSERT INTO listings (owner_id, owner_contact, name, description, url, commission_structure,
			payment_terms, affiliate_signup_url, promo_materials, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + listingColumns

	row := r.db.QueryRowContext(ctx, query,
		in.OwnerID,
		nullString(in.OwnerContact),
		in.Name,
		in.Description,
		in.URL,
		in.CommissionStructure,
		in.PaymentTerms,
		in.AffiliateSignupURL,
		nullString(in.PromoMaterials),
		string(status),
		now,
	)

	listing, err := scanListing(row)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("create listing", err)
	}
	return listing, nil
}

func (r *ListingRepository) ListByStatus(ctx context.Context, status models.ListingStatus) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE status = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, "list listings by status", query, string(status))
}

func (r *ListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, "list listings by owner", query, ownerID)
}

// FindByID returns ErrNotFound when no listing has id.
func (r *ListingRepository) FindByID(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("find listing", err)
	}
	return listing, nil
}

// UpdateStatus sets status and refreshes updated_at in a single statement.
// No transition rule is checked here.
func (r *ListingRepository) UpdateStatus(ctx context.Context, id int64, status models.ListingStatus) (*models.Listing, error) {
	query := `
		UPDATE listings
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + listingColumns

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, id, string(status), r.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("update listing status", err)
	}
	return listing, nil
}

// DeleteByOwner removes the listing only if ownerID owns it. A missing
// listing and a listing owned by someone else both yield ErrNotFound.
func (r *ListingRepository) DeleteByOwner(ctx context.Context, id int64, ownerID string) (*models.Listing, error) {
	query := `
		DELETE FROM listings
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + listingColumns

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("delete listing", err)
	}
	return listing, nil
}

func (r *ListingRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]models.Listing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError(op, err)
	}
	defer rows.Close()

	listings := make([]models.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError(op, err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError(op, fmt.Errorf("iterate rows: %w", err))
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		l              models.Listing
		ownerContact   sql.NullString
		promoMaterials sql.NullString
		status         string
	)
	err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&ownerContact,
		&l.Name,
		&l.Description,
		&l.URL,
		&l.CommissionStructure,
		&l.PaymentTerms,
		&l.AffiliateSignupURL,
		&promoMaterials,
		&status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.OwnerContact = stringPtr(ownerContact)
	l.PromoMaterials = stringPtr(promoMaterials)
	l.Status = models.ListingStatus(status)
	return &l, nil
}
