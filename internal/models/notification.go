// internal/models/notification.go
package models

import "time"

// Notification delivery outcomes.
const (
	NotificationSent    = "sent"
	NotificationSkipped = "skipped"
	NotificationFailed  = "failed"
)

// NotificationTemplate is a fixed email template with {{placeholder}} fields.
type NotificationTemplate struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationFailure is what the error tracker keeps about a delivery that
// did not go through.
type NotificationFailure struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	EventKind  string    `json:"eventKind"`
	Subscriber string    `json:"subscriber"`
	ListingID  int64     `json:"listingId"`
	Recipient  string    `json:"recipient,omitempty"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NotificationFailureReport is the admin view of the error tracker: the most
// recent failures and running totals per subscriber.
type NotificationFailureReport struct {
	Recent       []NotificationFailure `json:"recent"`
	BySubscriber map[string]int64      `json:"bySubscriber"`
}
