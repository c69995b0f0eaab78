// Package main provides the entrypoint for the CityMove API server: the
// route proxy, server-side geocoding and the city catalogue.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/api"
	"github.com/citymove/citymove/internal/api/handler"
	"github.com/citymove/citymove/internal/api/middleware"
	"github.com/citymove/citymove/internal/config"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/geocode/google"
	"github.com/citymove/citymove/internal/geocode/nominatim"
	"github.com/citymove/citymove/internal/provider/resilience"
	"github.com/citymove/citymove/internal/routing"
	"github.com/citymove/citymove/internal/routing/graphhopper"
	"github.com/citymove/citymove/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "citymove-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting CityMove API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg, serviceName, Version, log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()

	routeService := newRouteService(cfg, registry, providerMetrics, log)
	resolver := newResolver(cfg, registry, providerMetrics, log)

	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		CORSOrigins: cfg.CORSOrigins,
		RequireTLS:  cfg.RequireTLS,
		Resolver:    resolver,
		Registry:    registry,
	}
	if routeService != nil {
		routerCfg.RouteService = routeService
	}
	router := api.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// newRouteService builds the cached GraphHopper proxy, or returns nil when
// no key is configured.
func newRouteService(cfg config.Config, registry *resilience.Registry, recorder routing.CacheRecorder, log zerolog.Logger) *routing.Service {
	if cfg.GraphHopper.APIKey == "" {
		log.Warn().Msg("GRAPHHOPPER_KEY not set - route proxy will answer 500")
		return nil
	}

	client := graphhopper.NewClient(graphhopper.ClientConfig{
		APIKey:   cfg.GraphHopper.APIKey,
		BaseURL:  cfg.GraphHopper.BaseURL,
		Registry: registry,
		Logger:   log,
	})

	log.Info().Dur("cache_ttl", cfg.RouteCacheTTL).Msg("route proxy initialized")
	return routing.NewService(routing.ServiceConfig{
		Provider: client,
		Logger:   log,
		CacheTTL: cfg.RouteCacheTTL,
		Recorder: recorder,
	})
}

// newResolver builds the server-side geocoding chain: Google when a key is
// configured, then Nominatim.
func newResolver(cfg config.Config, registry *resilience.Registry, recorder geocode.Recorder, log zerolog.Logger) handler.PlaceResolver {
	fallback := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   cfg.Geocoding.NominatimBaseURL,
		UserAgent: cfg.Geocoding.NominatimUserAgent,
		Registry:  registry,
		Logger:    log,
	})

	var primary geocode.Primary
	if cfg.Geocoding.GoogleAPIKey != "" {
		primary = google.NewLoader(google.LoaderConfig{
			Client: google.ClientConfig{
				APIKey:   cfg.Geocoding.GoogleAPIKey,
				Registry: registry,
				Logger:   log,
			},
			Logger: log,
		})
	} else {
		log.Info().Msg("GOOGLE_MAPS_API_KEY not set - geocoding uses Nominatim only")
	}

	resolver := geocode.NewResolver(geocode.ResolverConfig{
		Primary:  primary,
		Fallback: fallback,
		Recorder: recorder,
		Logger:   log,
	})
	log.Info().Strs("strategies", resolver.Strategies()).Msg("geocoding resolver initialized")
	return resolver
}
