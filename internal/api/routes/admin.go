package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/alanbato/ursaproxy/internal/api/handlers/admin"
)

// AdminRouter builds the operator HTTP router.
//
// Routes:
//   - GET  /health             liveness probe, plain "OK"
//   - GET  /debug/cache        content cache counters
//   - POST /debug/cache/purge  drop every cached entry
//   - GET  /debug/upstream     circuit breaker state per upstream host
func AdminRouter(handler *admin.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	r.Get("/health", handler.HandleHealth)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/cache", handler.HandleCacheStats)
		r.Post("/cache/purge", handler.HandlePurgeCache)
		r.Get("/upstream", handler.HandleUpstream)
	})
	return r
}
