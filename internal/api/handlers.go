package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "affiliate-marketplace/internal/common/errors"
	"affiliate-marketplace/internal/common/validation"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// readObject decodes the request body as a JSON object. An empty body is an
// empty object so that schema validation reports the missing fields.
func readObject(r *http.Request) (map[string]interface{}, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	raw := map[string]interface{}{}
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		return nil, apperrors.NewFieldError("(root)", validation.CodeInvalidType, "request body must be a JSON object")
	}
	if raw == nil {
		return map[string]interface{}{}, nil
	}
	return raw, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, apperrors.NewFieldError(name, validation.CodeMinimumViolation, name+" must be a positive integer")
	}
	return n, nil
}

func (h *Handler) submitListing(w http.ResponseWriter, r *http.Request) {
	c := capabilityFromContext(r.Context())
	raw, err := readObject(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := h.validator.Submission(c, raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.service.Submit(r.Context(), c, *in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, listing)
}

func (h *Handler) listApproved(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListApproved(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listings)
}

func (h *Handler) searchApproved(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	listings, err := h.service.SearchApproved(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listings)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListPending(r.Context(), capabilityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listings)
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListOwn(r.Context(), capabilityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listings)
}

// reviewListing takes the id from the path and the decision from the body.
func (h *Handler) reviewListing(w http.ResponseWriter, r *http.Request) {
	raw, err := readObject(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw["listingId"] = chi.URLParam(r, "id")

	upd, err := h.validator.StatusUpdate(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.service.Review(r.Context(), capabilityFromContext(r.Context()), *upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listing)
}

func (h *Handler) deleteOwnListing(w http.ResponseWriter, r *http.Request) {
	id, err := h.validator.ListingID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.service.DeleteOwn(r.Context(), capabilityFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listing)
}

func (h *Handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ListFavorites(r.Context(), capabilityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, ids)
}

func (h *Handler) favoriteListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.FavoriteListings(r.Context(), capabilityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, listings)
}

func (h *Handler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	raw, err := readObject(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := h.validator.FavoriteToggle(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.ToggleFavorite(r.Context(), capabilityFromContext(r.Context()), *in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) submitWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	raw, err := readObject(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in, err := h.validator.WaitlistEntry(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.service.SubmitWaitlistEntry(r.Context(), *in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, entry)
}

func (h *Handler) listWaitlistEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListWaitlistEntries(r.Context(), capabilityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (h *Handler) notificationFailures(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	failures, err := h.service.NotificationFailures(r.Context(), capabilityFromContext(r.Context()), int64(limit))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, failures)
}
