// Package authz decides what an actor may do. Capabilities are resolved once
// per request and passed down explicitly; nothing here reads ambient state.
package authz

import (
	"strings"

	"affiliate-marketplace/internal/models"
)

// Policy holds the admin allow-list of email suffixes.
type Policy struct {
	adminSuffixes []string
}

// NewPolicy normalizes suffixes to lower case and drops blanks. An empty
// list means nobody is an admin.
func NewPolicy(adminEmailSuffixes []string) *Policy {
	suffixes := make([]string, 0, len(adminEmailSuffixes))
	for _, s := range adminEmailSuffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}
	return &Policy{adminSuffixes: suffixes}
}

// IsAdmin reports whether the actor's email ends with an allow-listed
// suffix. Missing id or email fails closed.
func (p *Policy) IsAdmin(actor *models.Actor) bool {
	if actor == nil || actor.ID == "" {
		return false
	}
	email := strings.ToLower(strings.TrimSpace(actor.Email))
	if email == "" {
		return false
	}
	for _, suffix := range p.adminSuffixes {
		if strings.HasSuffix(email, suffix) {
			return true
		}
	}
	return false
}

// Resolve computes the capability of actor. A nil actor is anonymous.
func (p *Policy) Resolve(actor *models.Actor) Capability {
	if actor == nil || actor.ID == "" {
		return Anonymous()
	}
	return Capability{
		actor: *actor,
		admin: p.IsAdmin(actor),
	}
}

// Capability is what one actor may do for the lifetime of a request.
type Capability struct {
	actor models.Actor
	admin bool
}

// Anonymous carries no identity and no rights.
func Anonymous() Capability {
	return Capability{}
}

func (c Capability) Actor() models.Actor { return c.actor }

func (c Capability) ActorID() string { return c.actor.ID }

func (c Capability) IsAuthenticated() bool { return c.actor.ID != "" }

func (c Capability) IsAdmin() bool { return c.admin && c.IsAuthenticated() }

// CanReview gates review decisions and the admin listings.
func (c Capability) CanReview() bool { return c.IsAdmin() }

// CanDeleteListing is ownership only; admins get no override.
func (c Capability) CanDeleteListing(listing *models.Listing) bool {
	if listing == nil || !c.IsAuthenticated() {
		return false
	}
	return listing.OwnerID == c.actor.ID
}
