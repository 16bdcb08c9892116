// internal/models/waitlist.go
package models

import "time"

// WaitlistEntry is an append-only signup for early access.
type WaitlistEntry struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Feedback    *string   `json:"feedback,omitempty"`
	DesiredApps *string   `json:"desiredApps,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type NewWaitlistEntry struct {
	Email       string  `json:"email"`
	Feedback    *string `json:"feedback"`
	DesiredApps *string `json:"desiredApps"`
}
