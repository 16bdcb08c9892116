// Package events defines the closed set of domain events raised by listing
// state transitions.
package events

import (
	"time"

	"affiliate-marketplace/internal/models"

	"github.com/google/uuid"
)

type Kind string

const (
	KindListingSubmitted     Kind = "ListingSubmitted"
	KindListingStatusChanged Kind = "ListingStatusChanged"
	KindListingWithdrawn     Kind = "ListingWithdrawn"
)

// Event is implemented only by the payload types in this package.
type Event interface {
	Kind() Kind
	Envelope() Envelope
	ListingID() int64
	isEvent()
}

// Envelope is the metadata shared by every event.
type Envelope struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	ActorID    string    `json:"actorId"`
}

func newEnvelope(actorID string, at time.Time) Envelope {
	return Envelope{ID: uuid.NewString(), OccurredAt: at.UTC(), ActorID: actorID}
}

// ListingSubmitted is raised after a new listing is stored as pending.
type ListingSubmitted struct {
	Meta    Envelope       `json:"meta"`
	Listing models.Listing `json:"listing"`
}

func NewListingSubmitted(listing models.Listing, at time.Time) ListingSubmitted {
	return ListingSubmitted{Meta: newEnvelope(listing.OwnerID, at), Listing: listing}
}

func (ListingSubmitted) Kind() Kind           { return KindListingSubmitted }
func (e ListingSubmitted) Envelope() Envelope { return e.Meta }
func (e ListingSubmitted) ListingID() int64   { return e.Listing.ID }
func (ListingSubmitted) isEvent()             {}

// ListingStatusChanged is raised after a review stored a new status.
// PreviousStatus is what the reviewer read, which may be stale under
// concurrent reviews.
type ListingStatusChanged struct {
	Meta           Envelope             `json:"meta"`
	Listing        models.Listing       `json:"listing"`
	PreviousStatus models.ListingStatus `json:"previousStatus"`
	NewStatus      models.ListingStatus `json:"newStatus"`
	ReviewerID     string               `json:"reviewerId"`
}

func NewListingStatusChanged(listing models.Listing, previous models.ListingStatus, reviewerID string, at time.Time) ListingStatusChanged {
	return ListingStatusChanged{
		Meta:           newEnvelope(reviewerID, at),
		Listing:        listing,
		PreviousStatus: previous,
		NewStatus:      listing.Status,
		ReviewerID:     reviewerID,
	}
}

func (ListingStatusChanged) Kind() Kind           { return KindListingStatusChanged }
func (e ListingStatusChanged) Envelope() Envelope { return e.Meta }
func (e ListingStatusChanged) ListingID() int64   { return e.Listing.ID }
func (ListingStatusChanged) isEvent()             {}

// ListingWithdrawn is raised after an owner deleted their listing.
type ListingWithdrawn struct {
	Meta    Envelope       `json:"meta"`
	Listing models.Listing `json:"listing"`
}

func NewListingWithdrawn(listing models.Listing, at time.Time) ListingWithdrawn {
	return ListingWithdrawn{Meta: newEnvelope(listing.OwnerID, at), Listing: listing}
}

func (ListingWithdrawn) Kind() Kind           { return KindListingWithdrawn }
func (e ListingWithdrawn) Envelope() Envelope { return e.Meta }
func (e ListingWithdrawn) ListingID() int64   { return e.Listing.ID }
func (ListingWithdrawn) isEvent()             {}

// Message is the wire form published to external subscribers.
type Message struct {
	Kind    Kind     `json:"kind"`
	Meta    Envelope `json:"meta"`
	Payload Event    `json:"payload"`
}

func ToMessage(e Event) Message {
	return Message{Kind: e.Kind(), Meta: e.Envelope(), Payload: e}
}
