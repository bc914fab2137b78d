// Package admin provides the operator HTTP endpoints: health, cache
// inspection and purge, and upstream circuit state.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanbato/ursaproxy/internal/core/blog"
	"github.com/alanbato/ursaproxy/internal/core/cache"
)

// CacheService exposes the content cache of the blog service.
type CacheService interface {
	CacheStats() cache.Stats
	PurgeCache() int
}

// UpstreamReporter reports the circuit breaker state per upstream host.
type UpstreamReporter interface {
	CircuitStats() map[string]blog.CircuitStats
}

// Handler serves the admin endpoints.
type Handler struct {
	cache    CacheService
	upstream UpstreamReporter
}

// NewHandler creates an admin handler. upstream may be nil.
func NewHandler(cacheService CacheService, upstream UpstreamReporter) *Handler {
	return &Handler{cache: cacheService, upstream: upstream}
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Warn("[ADMIN] failed to write health response", "error", err)
	}
}

// HandleCacheStats handles GET /debug/cache
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.CacheStats())
}

// HandlePurgeCache handles POST /debug/cache/purge
func (h *Handler) HandlePurgeCache(w http.ResponseWriter, r *http.Request) {
	purged := h.cache.PurgeCache()
	slog.Info("[ADMIN] cache purged", "entries", purged, "remote_addr", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}

// HandleUpstream handles GET /debug/upstream
func (h *Handler) HandleUpstream(w http.ResponseWriter, r *http.Request) {
	stats := map[string]blog.CircuitStats{}
	if h.upstream != nil {
		stats = h.upstream.CircuitStats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("[ADMIN] failed to encode response", "status", status, "error", err)
	}
}
