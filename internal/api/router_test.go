package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"affiliate-marketplace/internal/authz"
	"affiliate-marketplace/internal/common/auth"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/marketplace"
	"affiliate-marketplace/internal/marketplace/marketplacetest"
	"affiliate-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProbe struct {
	name string
	err  error
}

func (p stubProbe) Name() string               { return p.name }
func (p stubProbe) Ping(context.Context) error { return p.err }

type failingResolver struct{ err error }

func (f failingResolver) Resolve(*http.Request) (*models.Actor, error) { return nil, f.err }

type testServer struct {
	handler http.Handler
	stores  *marketplacetest.Stores
}

func newTestServer(t *testing.T, resolver auth.Resolver, probes ...Probe) *testServer {
	t.Helper()
	log := logger.NewTestLogger(t)
	stores := marketplacetest.NewStores()
	svc := marketplace.NewService(marketplace.Deps{
		Listings:  stores.Listings,
		Favorites: stores.Favorites,
		Waitlist:  stores.Waitlist,
		Publisher: stores.Publisher,
	}, log)
	if resolver == nil {
		resolver = auth.HeaderResolver{}
	}
	h := NewHandler(svc, marketplace.NewValidator(log), resolver,
		authz.NewPolicy([]string{"@admin.example.com"}), log, probes...)
	return &testServer{handler: NewRouter(h), stores: stores}
}

type response struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field string `json:"field"`
		Code  string `json:"code"`
	} `json:"errors"`
}

// do sends a request as actor ("" for anonymous). Admins are recognised by
// the email suffix.
func (s *testServer) do(t *testing.T, method, path, actor, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != "" {
		req.Header.Set(auth.HeaderActorID, actor)
		email := actor + "@example.com"
		if strings.HasPrefix(actor, "admin") {
			email = actor + "@admin.example.com"
		}
		req.Header.Set(auth.HeaderActorEmail, email)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

const listingBody = `{
	"name": "Acme Affiliates",
	"description": "Tools for makers",
	"url": "https://acme.example.com",
	"commissionStructure": "30% recurring",
	"paymentTerms": "Net 30",
	"affiliateSignupUrl": "https://acme.example.com/partners",
	"status": "approved",
	"id": 500
}`

func decodeListing(t *testing.T, raw json.RawMessage) models.Listing {
	t.Helper()
	var l models.Listing
	require.NoError(t, json.Unmarshal(raw, &l))
	return l
}

func decodeListings(t *testing.T, raw json.RawMessage) []models.Listing {
	t.Helper()
	var ls []models.Listing
	require.NoError(t, json.Unmarshal(raw, &ls))
	return ls
}

func TestSubmitReviewLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	code, res := s.do(t, http.MethodPost, "/api/v1/listings", "u1", listingBody)
	require.Equal(t, http.StatusCreated, code)
	created := decodeListing(t, res.Data)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, "u1", created.OwnerID)
	assert.NotEqual(t, int64(500), created.ID)

	code, res = s.do(t, http.MethodGet, "/api/v1/listings", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeListings(t, res.Data))

	path := "/api/v1/admin/listings/" + itoa(created.ID) + "/review"
	code, res = s.do(t, http.MethodPost, path, "u1", `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", res.Code)

	code, res = s.do(t, http.MethodPost, path, "admin1", `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusApproved, decodeListing(t, res.Data).Status)

	code, res = s.do(t, http.MethodGet, "/api/v1/listings", "", "")
	require.Equal(t, http.StatusOK, code)
	approved := decodeListings(t, res.Data)
	require.Len(t, approved, 1)
	assert.Equal(t, "30% recurring", approved[0].CommissionStructure)

	code, res = s.do(t, http.MethodPost, path, "admin1", `{"status":"rejected"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusRejected, decodeListing(t, res.Data).Status)

	code, res = s.do(t, http.MethodGet, "/api/v1/listings", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeListings(t, res.Data))
}

func TestSubmitListing_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	code, res := s.do(t, http.MethodPost, "/api/v1/listings", "", listingBody)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHENTICATED", res.Code)

	code, res = s.do(t, http.MethodPost, "/api/v1/listings", "u1", `{"name":"x","url":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "VALIDATION_FAILED", res.Code)
	fields := map[string]string{}
	for _, e := range res.Errors {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, "INVALID_FORMAT", fields["url"])
	assert.Equal(t, "REQUIRED_FIELD_MISSING", fields["description"])

	code, res = s.do(t, http.MethodPost, "/api/v1/listings", "u1", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", res.Code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/me/listings", "u1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, s.stores.Publisher.Events())
}

func TestReviewListing_BadInput(t *testing.T) {
	s := newTestServer(t, nil)

	code, res := s.do(t, http.MethodPost, "/api/v1/admin/listings/abc/review", "admin1", `{"status":"approved"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", res.Code)

	code, res = s.do(t, http.MethodPost, "/api/v1/admin/listings/1/review", "admin1", `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "status", res.Errors[0].Field)

	code, res = s.do(t, http.MethodPost, "/api/v1/admin/listings/99/review", "admin1", `{"status":"approved"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", res.Code)
}

func TestFavorites(t *testing.T) {
	s := newTestServer(t, nil)
	_, res := s.do(t, http.MethodPost, "/api/v1/listings", "u1", listingBody)
	id := decodeListing(t, res.Data).ID

	code, res := s.do(t, http.MethodPost, "/api/v1/me/favorites", "u2", `{"listingId":"`+itoa(id)+`"}`)
	require.Equal(t, http.StatusOK, code)
	var toggled models.ToggleResult
	require.NoError(t, json.Unmarshal(res.Data, &toggled))
	assert.True(t, toggled.IsFavorite)

	code, res = s.do(t, http.MethodGet, "/api/v1/me/favorites", "u2", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "["+itoa(id)+"]", string(res.Data))

	// not yet approved, so not shown as a favorite listing
	code, res = s.do(t, http.MethodGet, "/api/v1/me/favorites/listings", "u2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeListings(t, res.Data))

	code, res = s.do(t, http.MethodPost, "/api/v1/me/favorites", "u2", `{"listingId":`+itoa(id)+`}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &toggled))
	assert.False(t, toggled.IsFavorite)

	code, _ = s.do(t, http.MethodPost, "/api/v1/me/favorites", "u2", `{"listingId":404}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/me/favorites", "", `{"listingId":1}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDeleteOwnListing(t *testing.T) {
	s := newTestServer(t, nil)
	_, res := s.do(t, http.MethodPost, "/api/v1/listings", "u1", listingBody)
	path := "/api/v1/me/listings/" + itoa(decodeListing(t, res.Data).ID)

	code, res := s.do(t, http.MethodDelete, path, "u2", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", res.Code)

	code, _ = s.do(t, http.MethodDelete, path, "u1", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodDelete, path, "u1", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodDelete, "/api/v1/me/listings/0", "u1", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminOnlyRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/admin/listings/pending",
		"/api/v1/admin/waitlist",
		"/api/v1/admin/notification-failures",
	} {
		code, _ := s.do(t, http.MethodGet, path, "u1", "")
		assert.Equal(t, http.StatusForbidden, code, path)

		code, _ = s.do(t, http.MethodGet, path, "admin1", "")
		assert.Equal(t, http.StatusOK, code, path)
	}
}

func TestNotificationFailureReport(t *testing.T) {
	s := newTestServer(t, nil)

	code, res := s.do(t, http.MethodGet, "/api/v1/admin/notification-failures?limit=5", "admin1", "")
	require.Equal(t, http.StatusOK, code)

	var report map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.Data, &report))
	assert.JSONEq(t, `[]`, string(report["recent"]))
	assert.JSONEq(t, `{}`, string(report["bySubscriber"]))
}

func TestWaitlist(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodPost, "/api/v1/waitlist", "", `{"email":"fan@example.com","desiredApps":"Notion"}`)
	require.Equal(t, http.StatusCreated, code)

	code, res := s.do(t, http.MethodPost, "/api/v1/waitlist", "", `{"email":"fan"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", res.Code)

	code, res = s.do(t, http.MethodGet, "/api/v1/admin/waitlist", "admin1", "")
	require.Equal(t, http.StatusOK, code)
	var entries []models.WaitlistEntry
	require.NoError(t, json.Unmarshal(res.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "fan@example.com", entries[0].Email)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, nil)

	code, res := s.do(t, http.MethodGet, "/api/v1/listings/search", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "q", res.Errors[0].Field)

	code, _ = s.do(t, http.MethodGet, "/api/v1/listings/search?q=acme&limit=x", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = s.do(t, http.MethodGet, "/api/v1/listings/search?q=acme", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeListings(t, res.Data))
}

func TestPublicListings_OmitOwnerContact(t *testing.T) {
	s := newTestServer(t, nil)
	_, res := s.do(t, http.MethodPost, "/api/v1/listings", "u1", listingBody)
	created := decodeListing(t, res.Data)
	code, _ := s.do(t, http.MethodPost, "/api/v1/admin/listings/"+itoa(created.ID)+"/review", "admin1", `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, code)

	for _, path := range []string{"/api/v1/listings", "/api/v1/listings/search?q=acme"} {
		code, res = s.do(t, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, code, path)
		var raw []map[string]interface{}
		require.NoError(t, json.Unmarshal(res.Data, &raw), path)
		require.Len(t, raw, 1, path)
		assert.NotContains(t, raw[0], "ownerContact", path)
		assert.NotContains(t, string(res.Data), "u1@example.com", path)
	}

	code, res = s.do(t, http.MethodGet, "/api/v1/me/listings", "u1", "")
	require.Equal(t, http.StatusOK, code)
	mine := decodeListings(t, res.Data)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].OwnerContact)
	assert.Equal(t, "u1@example.com", *mine[0].OwnerContact)
}

func TestResolverFailureIsReported(t *testing.T) {
	s := newTestServer(t, failingResolver{err: errors.New("dial tcp: connection refused")})

	code, res := s.do(t, http.MethodGet, "/api/v1/listings", "", "")

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", res.Code)
	assert.Equal(t, "internal server error", res.Message)
	assert.NotContains(t, res.Message, "dial tcp")
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, nil, stubProbe{name: "postgres"}, stubProbe{name: "redis", err: errors.New("down")})

	code, _ := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	code, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func itoa(id int64) string {
	return models.ListingID(id).String()
}
