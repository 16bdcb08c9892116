// Package api exposes the marketplace workflow over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"affiliate-marketplace/internal/authz"
	"affiliate-marketplace/internal/common/auth"
	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/marketplace"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe is a dependency checked by the readiness endpoint.
type Probe interface {
	Name() string
	Ping(ctx context.Context) error
}

type Handler struct {
	service   *marketplace.Service
	validator *marketplace.Validator
	resolver  auth.Resolver
	policy    *authz.Policy
	probes    []Probe
	logger    logger.Logger
}

func NewHandler(
	service *marketplace.Service,
	validator *marketplace.Validator,
	resolver auth.Resolver,
	policy *authz.Policy,
	log logger.Logger,
	probes ...Probe,
) *Handler {
	return &Handler{
		service:   service,
		validator: validator,
		resolver:  resolver,
		policy:    policy,
		probes:    probes,
		logger:    log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.accessLogMiddleware)

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.actorMiddleware)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.listApproved)
			r.Post("/", h.submitListing)
			r.Get("/search", h.searchApproved)
		})

		r.Post("/waitlist", h.submitWaitlistEntry)

		r.Route("/me", func(r chi.Router) {
			r.Get("/listings", h.listOwn)
			r.Delete("/listings/{id}", h.deleteOwnListing)
			r.Get("/favorites", h.listFavorites)
			r.Post("/favorites", h.toggleFavorite)
			r.Get("/favorites/listings", h.favoriteListings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/listings/pending", h.listPending)
			r.Post("/listings/{id}/review", h.reviewListing)
			r.Get("/waitlist", h.listWaitlistEntries)
			r.Get("/notification-failures", h.notificationFailures)
		})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}

// ready pings every probe; any failure turns the response into a 503.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	healthy := true
	for _, p := range h.probes {
		if err := p.Ping(ctx); err != nil {
			healthy = false
			checks[p.Name()] = "unavailable"
			h.logger.Warn("readiness probe failed", map[string]interface{}{
				"probe": p.Name(),
				"error": err.Error(),
			})
			continue
		}
		checks[p.Name()] = "ok"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "error",
			"code":   "NOT_READY",
			"checks": checks,
		})
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"checks": checks})
}
