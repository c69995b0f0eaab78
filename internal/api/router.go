// Package api provides the HTTP API for CityMove.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/api/handler"
	"github.com/citymove/citymove/internal/api/middleware"
	"github.com/citymove/citymove/internal/api/models"
	"github.com/citymove/citymove/internal/api/response"
	"github.com/citymove/citymove/internal/planner"
	"github.com/citymove/citymove/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	// RouteService answers the route proxy. Nil when no routing key is
	// configured.
	RouteService handler.RouteFinder
	// Resolver backs GET /v1/geocode. The endpoint is not mounted when nil.
	Resolver handler.PlaceResolver
	// Registry tracks upstream provider health for the status endpoint.
	Registry *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "citymove-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, &models.Problem{
			Type:    models.ProblemTypeNotFound,
			Title:   "Method not allowed",
			Status:  http.StatusMethodNotAllowed,
			Detail:  r.Method + " is not supported on this endpoint",
			TraceID: middleware.GetRequestID(r.Context()),
		})
	})

	opsConfig := handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
	}
	if cache, ok := cfg.RouteService.(handler.RouteCache); ok {
		opsConfig.RouteCache = cache
	}
	opsHandler := handler.NewOpsHandler(opsConfig)
	routeHandler := handler.NewRouteHandler(cfg.RouteService, cfg.Logger)
	citiesHandler := handler.NewCitiesHandler(planner.Cities)

	routeRateLimit := middleware.RateLimitByIP(middleware.RouteRateLimit)
	geocodeRateLimit := middleware.RateLimitByIP(middleware.GeocodeRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	// Route proxy used by the map front-end
	r.Route("/api/route", func(r chi.Router) {
		r.Use(routeRateLimit)
		r.Use(middleware.RequireJSON)
		r.Post("/", routeHandler.ComputeRoute)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/cities", citiesHandler.ListCities)

		if cfg.Resolver != nil {
			geocodeHandler := handler.NewGeocodeHandler(cfg.Resolver, cfg.Logger)
			r.With(geocodeRateLimit).Get("/geocode", geocodeHandler.Geocode)
		}
	})

	return r
}
