// internal/models/actor.go
package models

// Actor is the caller of an operation as resolved from the identity provider.
// A zero Actor is anonymous.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (a Actor) IsAuthenticated() bool {
	return a.ID != ""
}
