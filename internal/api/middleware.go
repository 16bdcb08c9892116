package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"affiliate-marketplace/internal/authz"
	"affiliate-marketplace/internal/common/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyRequestID  ctxKey = "request_id"
	ctxKeyCapability ctxKey = "capability"
)

const headerRequestID = "X-Request-Id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic while serving request", map[string]interface{}{
					"requestId": requestIDFromContext(r.Context()),
					"path":      r.URL.Path,
					"panic":     rec,
				})
				writeInternal(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// accessLogMiddleware records request metrics by route pattern, so ids in
// the path do not explode label cardinality.
func (h *Handler) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		h.logger.Debug("request served", map[string]interface{}{
			"requestId":  requestIDFromContext(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     rec.status,
			"durationMs": elapsed.Milliseconds(),
		})
	})
}

// actorMiddleware resolves the caller and stores its capability. Requests
// without credentials continue as anonymous; each handler decides whether
// that is enough.
func (h *Handler) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := h.resolver.Resolve(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		c := h.policy.Resolve(actor)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyCapability, c)))
	})
}

func capabilityFromContext(ctx context.Context) authz.Capability {
	if c, ok := ctx.Value(ctxKeyCapability).(authz.Capability); ok {
		return c
	}
	return authz.Anonymous()
}
