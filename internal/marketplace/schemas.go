package marketplace

import (
	"strings"

	"affiliate-marketplace/internal/authz"
	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/common/validation"
	"affiliate-marketplace/internal/models"
)

// Schema names, also used as the "schema" log field on failures.
const (
	SchemaListingCreate       = "listing-create"
	SchemaListingStatusUpdate = "listing-status-update"
	SchemaFavoriteToggle      = "favorite-toggle"
	SchemaWaitlistEntry       = "waitlist-entry"
	SchemaListingRef          = "listing-ref"
)

const listingIDSchema = `{
  "type": ["integer", "string"],
  "minimum": 1,
  "pattern": "^[1-9][0-9]*$",
  "maxLength": 19
}`

var (
	listingCreateSchema = validation.MustCompile(SchemaListingCreate, `{
  "type": "object",
  "required": ["ownerId", "name", "description", "url", "commissionStructure",
               "paymentTerms", "affiliateSignupUrl", "status"],
  "properties": {
    "ownerId":             {"type": "string", "minLength": 1},
    "ownerContact":        {"type": ["string", "null"], "format": "email", "maxLength": 320},
    "name":                {"type": "string", "format": "non-blank", "maxLength": 200},
    "description":         {"type": "string", "format": "non-blank", "maxLength": 5000},
    "url":                 {"type": "string", "format": "absolute-url", "maxLength": 2048},
    "commissionStructure": {"type": "string", "format": "non-blank", "maxLength": 1000},
    "paymentTerms":        {"type": "string", "format": "non-blank", "maxLength": 1000},
    "affiliateSignupUrl":  {"type": "string", "format": "absolute-url", "maxLength": 2048},
    "promoMaterials":      {"type": ["string", "null"], "maxLength": 5000},
    "status":              {"type": "string", "enum": ["pending", "approved", "rejected"]}
  }
}`, map[string]interface{}{"status": string(models.StatusPending)})

	listingStatusUpdateSchema = validation.MustCompile(SchemaListingStatusUpdate, `{
  "type": "object",
  "required": ["listingId", "status"],
  "properties": {
    "listingId": `+listingIDSchema+`,
    "status":    {"type": "string", "enum": ["approved", "rejected"]}
  }
}`, nil)

	favoriteToggleSchema = validation.MustCompile(SchemaFavoriteToggle, `{
  "type": "object",
  "required": ["listingId"],
  "properties": {
    "listingId": `+listingIDSchema+`
  }
}`, nil)

	listingRefSchema = validation.MustCompile(SchemaListingRef, `{
  "type": "object",
  "required": ["listingId"],
  "properties": {
    "listingId": `+listingIDSchema+`
  }
}`, nil)

	waitlistEntrySchema = validation.MustCompile(SchemaWaitlistEntry, `{
  "type": "object",
  "required": ["email"],
  "properties": {
    "email":       {"type": "string", "format": "email", "maxLength": 320},
    "feedback":    {"type": ["string", "null"], "maxLength": 5000},
    "desiredApps": {"type": ["string", "null"], "maxLength": 2000}
  }
}`, nil)
)

// Validator turns untyped request bodies into typed inputs. Every entry
// point into the Service goes through it; unknown keys are ignored.
type Validator struct {
	logger logger.Logger
}

func NewValidator(log logger.Logger) *Validator {
	return &Validator{logger: log.WithFields(map[string]interface{}{"component": "validator"})}
}

// Submission prepares a listing for creation on behalf of the capability's
// actor: the owner is forced to the actor, the status is forced to pending
// and any caller-supplied id or timestamps are dropped. A missing
// ownerContact falls back to the actor's email.
func (v *Validator) Submission(c authz.Capability, raw map[string]interface{}) (*models.NewListing, error) {
	if !c.IsAuthenticated() {
		return nil, apperrors.NewUnauthenticatedError("submitting a listing requires an actor id")
	}

	input := make(map[string]interface{}, len(raw)+2)
	for k, val := range raw {
		input[k] = val
	}
	for _, k := range []string{"id", "status", "createdAt", "updatedAt"} {
		delete(input, k)
	}
	input["ownerId"] = c.ActorID()
	if contact, ok := input["ownerContact"]; !ok || contact == nil {
		if email := strings.TrimSpace(c.Actor().Email); email != "" {
			input["ownerContact"] = email
		}
	}

	listing, err := validation.Decode[models.NewListing](listingCreateSchema, input, v.logger)
	if err != nil {
		return nil, err
	}
	listing.Status = models.StatusPending
	return listing, nil
}

// StatusUpdate validates a review decision. No defaults apply.
func (v *Validator) StatusUpdate(raw map[string]interface{}) (*models.StatusUpdate, error) {
	return validation.Decode[models.StatusUpdate](listingStatusUpdateSchema, raw, v.logger)
}

func (v *Validator) FavoriteToggle(raw map[string]interface{}) (*models.FavoriteToggle, error) {
	return validation.Decode[models.FavoriteToggle](favoriteToggleSchema, raw, v.logger)
}

func (v *Validator) WaitlistEntry(raw map[string]interface{}) (*models.NewWaitlistEntry, error) {
	return validation.Decode[models.NewWaitlistEntry](waitlistEntrySchema, raw, v.logger)
}

// ListingID validates an id taken from a path segment.
func (v *Validator) ListingID(raw string) (models.ListingID, error) {
	ref, err := validation.Decode[models.FavoriteToggle](listingRefSchema, map[string]interface{}{"listingId": raw}, v.logger)
	if err != nil {
		return 0, err
	}
	return ref.ListingID, nil
}
