package server

import (
	"net/http"

	"github.com/gridpoint-ai/gridpoint/internal/api"
	"github.com/gridpoint-ai/gridpoint/internal/api/handlers"
	"github.com/gridpoint-ai/gridpoint/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	ProjectHandler  *handlers.ProjectHandler
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	QueryHandler    *handlers.QueryHandler
	AuthHandler     *handlers.AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Large enough for document uploads; enforced per request.
	const maxBodyBytes int64 = 50 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", cfg.ProjectHandler.Create)
			r.Get("/", cfg.ProjectHandler.List)
			r.Get("/{id}", cfg.ProjectHandler.Get)
			r.Patch("/{id}", cfg.ProjectHandler.Update)
			r.Delete("/{id}", cfg.ProjectHandler.Delete)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Post("/sync", cfg.DocumentHandler.Sync)
			r.Post("/query", cfg.QueryHandler.Query)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Get("/{id}/status", cfg.DocumentHandler.Status)
			r.Get("/{id}/download", cfg.DocumentHandler.Download)
			r.Post("/{id}/index", cfg.DocumentHandler.RequestIndex)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/chat", cfg.ChatHandler.Chat)

		r.Route("/apikeys", func(r chi.Router) {
			r.Post("/", cfg.AuthHandler.CreateAPIKey)
			r.Get("/", cfg.AuthHandler.ListAPIKeys)
			r.Delete("/{id}", cfg.AuthHandler.RevokeAPIKey)
		})
	})

	r.Post("/users", cfg.AuthHandler.CreateUser)

	return r
}
