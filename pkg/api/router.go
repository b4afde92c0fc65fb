package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tablesalive/pkg/config"
)

// GetRouter initialises a new http router and applies all routes
func GetRouter(fetcher TableFetcher, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Duration))
	if cfg.Rate.Enabled {
		r.Use(newIPRateLimiter(cfg.Rate.RequestsPerMinute).Handler)
	}

	return applyRoutes(r, &Handler{fetcher: fetcher})
}

func applyRoutes(r chi.Router, h *Handler) chi.Router {
	r.Route("/", func(r chi.Router) {
		r.Get("/", h.getIndex)
		r.Post("/data", h.postData)
		r.Post("/analyze", h.postAnalyze)
		r.Post("/download", h.postDownload)
	})

	return r
}
