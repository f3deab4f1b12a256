package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/podseek/internal/api"
	"github.com/cloo-solutions/podseek/internal/api/handlers"
	"github.com/cloo-solutions/podseek/internal/api/middleware"
)

type RouterConfig struct {
	Logger        logrus.FieldLogger
	AuthValidator middleware.AuthValidator
	SearchHandler *handlers.SearchHandler
	AdminHandler  *handlers.AdminHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/search", cfg.SearchHandler.Search)
	r.Get("/episodes/{id}", cfg.SearchHandler.Episode)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Post("/cache/invalidate", cfg.AdminHandler.InvalidateCache)
	})

	return r
}
