package authz

import (
	"testing"

	"affiliate-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_IsAdmin(t *testing.T) {
	p := NewPolicy([]string{"@staff.example.com", " @Ops.Example.com ", ""})

	tests := []struct {
		name  string
		actor *models.Actor
		want  bool
	}{
		{"nil actor", nil, false},
		{"empty id", &models.Actor{Email: "a@staff.example.com"}, false},
		{"empty email", &models.Actor{ID: "u1"}, false},
		{"matching suffix", &models.Actor{ID: "u1", Email: "a@staff.example.com"}, true},
		{"case insensitive", &models.Actor{ID: "u1", Email: "A@OPS.example.COM"}, true},
		{"non matching", &models.Actor{ID: "u1", Email: "a@example.com"}, false},
		{"suffix in local part only", &models.Actor{ID: "u1", Email: "staff.example.com@evil.io"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsAdmin(tt.actor))
		})
	}
}

func TestPolicy_EmptyAllowListHasNoAdmins(t *testing.T) {
	p := NewPolicy(nil)
	assert.False(t, p.IsAdmin(&models.Actor{ID: "u1", Email: "root@anything.com"}))
}

func TestCapability_Resolve(t *testing.T) {
	p := NewPolicy([]string{"@staff.example.com"})

	anon := p.Resolve(nil)
	assert.False(t, anon.IsAuthenticated())
	assert.False(t, anon.CanReview())
	assert.False(t, anon.CanDeleteListing(&models.Listing{OwnerID: ""}))

	admin := p.Resolve(&models.Actor{ID: "adm", Email: "boss@staff.example.com"})
	assert.True(t, admin.IsAuthenticated())
	assert.True(t, admin.CanReview())
	assert.Equal(t, "adm", admin.ActorID())

	user := p.Resolve(&models.Actor{ID: "u1", Email: "u1@example.com"})
	assert.True(t, user.IsAuthenticated())
	assert.False(t, user.CanReview())
}

func TestCapability_CanDeleteListing_OwnershipOnly(t *testing.T) {
	p := NewPolicy([]string{"@staff.example.com"})
	listing := &models.Listing{ID: 1, OwnerID: "u1"}

	assert.True(t, p.Resolve(&models.Actor{ID: "u1", Email: "u1@example.com"}).CanDeleteListing(listing))
	assert.False(t, p.Resolve(&models.Actor{ID: "u2", Email: "u2@example.com"}).CanDeleteListing(listing))
	assert.False(t, p.Resolve(&models.Actor{ID: "adm", Email: "a@staff.example.com"}).CanDeleteListing(listing))
	assert.False(t, p.Resolve(&models.Actor{ID: "u1"}).CanDeleteListing(nil))
}
