// internal/models/favorite.go
package models

import "time"

// Favorite marks a listing as bookmarked by an actor. (OwnerID, ListingID)
// is unique.
type Favorite struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"ownerId"`
	ListingID int64     `json:"listingId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteToggle is a validated toggle request.
type FavoriteToggle struct {
	ListingID ListingID `json:"listingId"`
}

// ToggleResult reports the state after a toggle.
type ToggleResult struct {
	ListingID  int64 `json:"listingId"`
	IsFavorite bool  `json:"isFavorite"`
}
