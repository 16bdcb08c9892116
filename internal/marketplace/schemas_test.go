package marketplace

import (
	"testing"

	"affiliate-marketplace/internal/authz"
	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/common/validation"
	"affiliate-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_SubmissionKeepsExplicitContactAndIgnoresUnknownKeys(t *testing.T) {
	v := NewValidator(logger.NewNoOpLogger())
	raw := validPayload()
	raw["ownerContact"] = "partners@acme.example.com"
	raw["promoMaterials"] = "https://acme.example.com/kit.zip"
	raw["tracking"] = map[string]interface{}{"utm": "x"}

	in, err := v.Submission(owner("u1"), raw)

	require.NoError(t, err)
	require.NotNil(t, in.OwnerContact)
	assert.Equal(t, "partners@acme.example.com", *in.OwnerContact)
	require.NotNil(t, in.PromoMaterials)
	assert.Equal(t, models.StatusPending, in.Status)
	assert.Equal(t, "u1", in.OwnerID)
	// the caller's map is left untouched
	_, hasOwner := raw["ownerId"]
	assert.False(t, hasOwner)
}

func TestValidator_SubmissionWithoutEmailLeavesContactEmpty(t *testing.T) {
	v := NewValidator(logger.NewNoOpLogger())
	c := authz.NewPolicy(nil).Resolve(&models.Actor{ID: "u9"})

	in, err := v.Submission(c, validPayload())

	require.NoError(t, err)
	assert.Nil(t, in.OwnerContact)
}

func TestValidator_SubmissionFieldErrors(t *testing.T) {
	v := NewValidator(logger.NewNoOpLogger())

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		field  string
		code   string
	}{
		{"missing name", func(m map[string]interface{}) { delete(m, "name") }, "name", validation.CodeRequiredFieldMissing},
		{"blank terms", func(m map[string]interface{}) { m["paymentTerms"] = "\t" }, "paymentTerms", validation.CodeInvalidFormat},
		{"relative signup url", func(m map[string]interface{}) { m["affiliateSignupUrl"] = "/join" }, "affiliateSignupUrl", validation.CodeInvalidFormat},
		{"ftp url", func(m map[string]interface{}) { m["url"] = "ftp://acme.example.com" }, "url", validation.CodeInvalidFormat},
		{"numeric description", func(m map[string]interface{}) { m["description"] = 12 }, "description", validation.CodeInvalidType},
		{"bad contact", func(m map[string]interface{}) { m["ownerContact"] = "acme" }, "ownerContact", validation.CodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPayload()
			tt.mutate(raw)

			_, err := v.Submission(owner("u1"), raw)

			require.Error(t, err)
			std := apperrors.AsStandard(err)
			require.Equal(t, apperrors.ErrCodeValidationFailed, std.Code)
			var found bool
			for _, fe := range std.Fields {
				if fe.Field == tt.field {
					found = true
					assert.Equal(t, tt.code, fe.Code)
				}
			}
			assert.True(t, found, "no error reported for %s: %+v", tt.field, std.Fields)
		})
	}
}

func TestValidator_StatusUpdateAcceptsNumericAndStringIDs(t *testing.T) {
	v := NewValidator(logger.NewNoOpLogger())

	for _, raw := range []interface{}{4, 4.0, "4"} {
		upd, err := v.StatusUpdate(map[string]interface{}{"listingId": raw, "status": "approved"})
		require.NoError(t, err, "listingId=%v", raw)
		assert.Equal(t, models.ListingID(4), upd.ListingID)
		assert.Equal(t, models.StatusApproved, upd.Status)
	}

	_, err := v.StatusUpdate(map[string]interface{}{"listingId": 4})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.AsStandard(err).Code)

	_, err = v.StatusUpdate(map[string]interface{}{"listingId": 4.5, "status": "approved"})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.AsStandard(err).Code)
}

func TestValidator_ListingID(t *testing.T) {
	v := NewValidator(logger.NewNoOpLogger())

	id, err := v.ListingID("12")
	require.NoError(t, err)
	assert.Equal(t, models.ListingID(12), id)

	for _, raw := range []string{"", "0", "-1", "abc", "01", "99999999999999999999"} {
		_, err := v.ListingID(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestValidator_WaitlistEntryOptionalFields(t *testing.T) {
	v := NewValidator(logger.NewNoOpLogger())

	in, err := v.WaitlistEntry(map[string]interface{}{"email": "fan@example.com", "feedback": nil})

	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", in.Email)
	assert.Nil(t, in.Feedback)
	assert.Nil(t, in.DesiredApps)
}
