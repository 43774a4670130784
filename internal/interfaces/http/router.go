// Package http exposes the map read model and headless map sessions over a
// chi router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/internal/interfaces/http/handlers"
	"github.com/turtacn/PlotAtlas/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.  Nil handlers leave their routes unregistered.
type RouterConfig struct {
	MapHandler     *handlers.MapHandler
	SessionHandler *handlers.SessionHandler
	HealthHandler  *handlers.HealthHandler

	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	Observer       middleware.HTTPObserver

	CORS             *middleware.CORSConfig
	Logging          middleware.LoggingConfig
	SessionRateLimit middleware.RateLimitConfig

	Logger logging.Logger
}

// NewRouter builds the route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	if cfg.Observer != nil {
		r.Use(middleware.Metrics(cfg.Observer))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(chimw.Recoverer)
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerMapRoutes(api, cfg.MapHandler)
		registerSessionRoutes(api, cfg.SessionHandler, cfg.SessionRateLimit)
	})
	return r
}

func registerMapRoutes(r chi.Router, h *handlers.MapHandler) {
	if h == nil {
		return
	}
	r.Route("/map", func(m chi.Router) {
		m.Get("/config", h.Config)
		m.Get("/version", h.Version)
		m.Get("/clusters", h.Clusters)
		m.Get("/cities", h.Cities)
		m.Get("/cities/{city}/plots", h.Plots)
		m.Post("/reconstruct", h.Reconstruct)
		m.Get("/icons/{file}", h.Icon)
	})
	r.Get("/properties/{id}", h.Property)
}

func registerSessionRoutes(r chi.Router, h *handlers.SessionHandler, limit middleware.RateLimitConfig) {
	if h == nil {
		return
	}
	r.Route("/map/sessions", func(s chi.Router) {
		s.Get("/", h.List)
		s.With(middleware.RateLimit(limit)).Post("/", h.Create)

		s.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Delete("/", h.Delete)
			item.Get("/clusters", h.Clusters)
			item.Get("/plots", h.Plots)
			item.Post("/select", h.Select)
			item.Post("/back", h.Back)
			item.Post("/popup", h.OpenPopup)
			item.Delete("/popup", h.ClosePopup)
			item.Post("/resize", h.Resize)
		})
	})
}

//Personal.AI order the ending
