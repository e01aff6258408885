package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursewise/videokb/internal/api"
	"github.com/coursewise/videokb/internal/api/handlers"
	"github.com/coursewise/videokb/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	AnalysisHandler *handlers.AnalysisHandler
	AuthHandler     *handlers.AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", cfg.AnalysisHandler.Create)
			r.Get("/", cfg.AnalysisHandler.List)
			r.Get("/{id}", cfg.AnalysisHandler.Get)
			r.Get("/{id}/chunks", cfg.AnalysisHandler.Chunks)
			r.Post("/{id}/questions", cfg.AnalysisHandler.Ask)
			r.Get("/{id}/questions", cfg.AnalysisHandler.Questions)
		})
	})

	r.Post("/owners", cfg.AuthHandler.CreateOwner)
	r.Post("/apikeys", cfg.AuthHandler.CreateAPIKey)

	return r
}
