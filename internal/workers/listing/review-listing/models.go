package reviewlisting

import (
	"time"

	"affiliate-marketplace/internal/models"
)

// Input is read from the process variables. The reviewer is whoever
// completed the preceding user task.
type Input struct {
	ListingID     interface{} `json:"listingId"`
	Status        string      `json:"status"`
	ReviewerID    string      `json:"reviewerId"`
	ReviewerEmail string      `json:"reviewerEmail"`
}

// Output is merged back into the process instance.
type Output struct {
	ListingID  int64                `json:"listingId"`
	Status     models.ListingStatus `json:"listingStatus"`
	OwnerID    string               `json:"ownerId"`
	ReviewedAt time.Time            `json:"reviewedAt"`
}
