package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vnmchuo/prompt-optimizer/internal/auth"
)

// NewRouter wires the public and key-protected routes. metrics may be nil.
func NewRouter(h *Handler, authMiddleware auth.Middleware, metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "prompt-optimizer"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Get("/v1/ai/models", h.HandleModels)
	r.Get("/v1/ai/status", h.HandleStatus)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/v1/ai/optimize-prompt", h.HandleOptimize)
		r.Post("/v1/ai/generate-prompt", h.HandleGenerate)
		r.Post("/v1/ai/optimize-prompt-multiturn", h.HandleRefine)
		r.Get("/v1/ai/usage", h.HandleUsage)
		r.Get("/v1/ai/keys", h.HandleListKeys)
		r.Delete("/v1/ai/keys/{id}", h.HandleRevokeKey)
	})

	return r
}
