package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/njoyaf/mboa-location/internal/api/location"
)

// Config contains dependencies needed for the router setup
type Config struct {
	LocationHandler   *location.LocationHandler
	ProfileMiddleware func(http.Handler) http.Handler
	AllowedOrigins    []string
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied *before* mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Profile-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cfg.ProfileMiddleware)

			r.Get("/location", cfg.LocationHandler.GetLocation)
			r.Put("/location", cfg.LocationHandler.UpdateLocation)
			r.Post("/location/refresh", cfg.LocationHandler.RefreshLocation)
			r.Delete("/location", cfg.LocationHandler.ClearLocation)
			r.Put("/location/view-mode", cfg.LocationHandler.UpdateViewMode)
		})

		// Registry enumeration needs no profile identity.
		r.Get("/cities", cfg.LocationHandler.ListCities)
	})

	return r
}
