package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingStatus(t *testing.T) {
	assert.True(t, StatusPending.IsValid())
	assert.True(t, StatusApproved.IsValid())
	assert.True(t, StatusRejected.IsValid())
	assert.False(t, ListingStatus("archived").IsValid())
	assert.False(t, ListingStatus("").IsValid())

	assert.False(t, StatusPending.IsReviewOutcome())
	assert.True(t, StatusApproved.IsReviewOutcome())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestListingID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ListingID
		wantErr bool
	}{
		{"number", `4`, 4, false},
		{"float with zero fraction", `4.0`, 4, false},
		{"numeric string", `"4"`, 4, false},
		{"padded string", `" 12 "`, 12, false},
		{"zero", `0`, 0, true},
		{"negative string", `"-3"`, 0, true},
		{"fraction", `1.5`, 0, true},
		{"word", `"abc"`, 0, true},
		{"bool", `true`, 0, true},
		{"largest id", `"9223372036854775807"`, 9223372036854775807, false},
		{"one past int64", `"9223372036854775808"`, 0, true},
		{"one past int64 as number", `9223372036854775808`, 0, true},
		{"2^63 in exponent form", `9.223372036854775808e18`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ListingID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseListingID_RejectsOverflow(t *testing.T) {
	for _, s := range []string{"9223372036854775808", "9223372036854775808.0", "1e19"} {
		id, err := ParseListingID(s)
		assert.Error(t, err, s)
		assert.Zero(t, id, s)
	}
}

func TestStatusUpdate_DecodesStringID(t *testing.T) {
	var upd StatusUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"listingId":"7","status":"approved"}`), &upd))
	assert.Equal(t, int64(7), upd.ListingID.Int64())
	assert.Equal(t, StatusApproved, upd.Status)
}

func TestToListingID(t *testing.T) {
	for _, v := range []interface{}{1, int64(1), float64(1), "1", json.Number("1"), ListingID(1)} {
		id, ok := ToListingID(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, ListingID(1), id)
	}

	for _, v := range []interface{}{nil, 0, -1, 1.5, "", "x", true, float64(1 << 63)} {
		_, ok := ToListingID(v)
		assert.False(t, ok, "%v", v)
	}
}

func TestFilterFavorites_MixedIDs(t *testing.T) {
	type row struct{ id interface{} }
	items := []row{{1}, {2}, {3}, {"4"}}

	got := FilterFavorites(items, func(r row) interface{} { return r.id }, []interface{}{1, "3"})

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].id)
	assert.Equal(t, 3, got[1].id)
}

func TestFilterFavorites_Empty(t *testing.T) {
	listings := []Listing{{ID: 1}, {ID: 2}}
	got := FilterFavorites(listings, func(l Listing) interface{} { return l.ID }, nil)
	assert.Empty(t, got)
}

func TestPublicListings_DropOwnerContact(t *testing.T) {
	contact := "owner@example.com"
	in := []Listing{{ID: 1, OwnerContact: &contact}, {ID: 2}}

	out := PublicListings(in)

	require.Len(t, out, 2)
	assert.Nil(t, out[0].OwnerContact)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Same(t, &contact, in[0].OwnerContact)
}
