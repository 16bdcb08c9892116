// internal/models/listing.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ListingStatus is the review state of a listing.
type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusApproved ListingStatus = "approved"
	StatusRejected ListingStatus = "rejected"
)

func (s ListingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined from s.
func (s ListingStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsReviewOutcome reports whether s is a valid target of a review.
func (s ListingStatus) IsReviewOutcome() bool {
	return s == StatusApproved || s == StatusRejected
}

// Listing is an affiliate program submission.
type Listing struct {
	ID                  int64         `json:"id"`
	OwnerID             string        `json:"ownerId"`
	OwnerContact        *string       `json:"ownerContact,omitempty"`
	Name                string        `json:"name"`
	Description         string        `json:"description"`
	URL                 string        `json:"url"`
	CommissionStructure string        `json:"commissionStructure"`
	PaymentTerms        string        `json:"paymentTerms"`
	AffiliateSignupURL  string        `json:"affiliateSignupUrl"`
	PromoMaterials      *string       `json:"promoMaterials,omitempty"`
	Status              ListingStatus `json:"status"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// Public returns the listing as anonymous visitors see it: the owner's
// contact address is only shown to the owner and to admins.
func (l Listing) Public() Listing {
	l.OwnerContact = nil
	return l
}

// PublicListings applies Public to every listing in ls.
func PublicListings(ls []Listing) []Listing {
	out := make([]Listing, len(ls))
	for i, l := range ls {
		out[i] = l.Public()
	}
	return out
}

// NewListing is a validated listing payload that has not been stored yet.
type NewListing struct {
	OwnerID             string        `json:"ownerId"`
	OwnerContact        *string       `json:"ownerContact"`
	Name                string        `json:"name"`
	Description         string        `json:"description"`
	URL                 string        `json:"url"`
	CommissionStructure string        `json:"commissionStructure"`
	PaymentTerms        string        `json:"paymentTerms"`
	AffiliateSignupURL  string        `json:"affiliateSignupUrl"`
	PromoMaterials      *string       `json:"promoMaterials"`
	Status              ListingStatus `json:"status"`
}

// StatusUpdate is a validated review decision.
type StatusUpdate struct {
	ListingID ListingID     `json:"listingId"`
	Status    ListingStatus `json:"status"`
}

// ListingID is a listing identity that accepts JSON numbers and numeric
// strings alike, so 4 and "4" name the same listing.
type ListingID int64

func (id ListingID) Int64() int64 { return int64(id) }

func (id ListingID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id *ListingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseListingID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("listing id: %w", err)
	}
	parsed, err := ParseListingID(n.String())
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseListingID normalizes the textual forms "4", " 4 " and "4.0".
func ParseListingID(s string) (ListingID, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i <= 0 {
			return 0, fmt.Errorf("listing id must be positive, got %d", i)
		}
		return ListingID(i), nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f <= 0 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid listing id %q", s)
	}
	return ListingID(int64(f)), nil
}

// ToListingID coerces a value decoded from JSON (float64, json.Number,
// string or any Go integer) into a ListingID.
func ToListingID(v interface{}) (ListingID, bool) {
	switch t := v.(type) {
	case ListingID:
		return t, t > 0
	case int:
		return ListingID(t), t > 0
	case int32:
		return ListingID(t), t > 0
	case int64:
		return ListingID(t), t > 0
	case float64:
		if t != math.Trunc(t) || t <= 0 || t >= math.MaxInt64 {
			return 0, false
		}
		return ListingID(int64(t)), true
	case json.Number:
		id, err := ParseListingID(t.String())
		return id, err == nil
	case string:
		id, err := ParseListingID(t)
		return id, err == nil
	default:
		return 0, false
	}
}

// FilterFavorites keeps the listings whose id appears in favoriteIDs. Both
// sides may mix numeric and string ids.
func FilterFavorites[T any](items []T, idOf func(T) interface{}, favoriteIDs []interface{}) []T {
	set := make(map[ListingID]struct{}, len(favoriteIDs))
	for _, raw := range favoriteIDs {
		if id, ok := ToListingID(raw); ok {
			set[id] = struct{}{}
		}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		id, ok := ToListingID(idOf(item))
		if !ok {
			continue
		}
		if _, fav := set[id]; fav {
			out = append(out, item)
		}
	}
	return out
}
