// Package main is the CityMove terminal front-end: pick a city, resolve an
// origin and a destination, and request a route from the backend.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/account"
	"github.com/citymove/citymove/internal/config"
	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/geocode/google"
	"github.com/citymove/citymove/internal/geocode/nominatim"
	"github.com/citymove/citymove/internal/mapview"
	"github.com/citymove/citymove/internal/planner"
	"github.com/citymove/citymove/internal/provider/resilience"
	"github.com/citymove/citymove/internal/routing"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	city := flag.String("city", "", "initial city (default: first in the catalogue)")
	backend := flag.String("backend", "", "route and account backend URL (overrides CITYMOVE_BACKEND_URL)")
	width := flag.Int("width", 1024, "map width in pixels")
	height := flag.Int("height", 768, "map height in pixels")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)
	if *backend != "" {
		cfg.BackendURL = *backend
	}

	registry := resilience.NewRegistry()

	resolver := newResolver(cfg, registry, log)
	coordinator := routing.NewCoordinator(routing.CoordinatorConfig{
		BackendURL: cfg.BackendURL,
		Registry:   registry,
		Logger:     log,
	})

	var scene *mapview.Scene
	view, err := mapview.Open(mapview.SceneFactory(*width, *height, func(s *mapview.Scene) { scene = s }), mapview.Options{
		ContainerID: "map",
		Logger:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open map")
	}

	p, err := planner.New(planner.Config{
		Resolver: resolver,
		Router:   coordinator,
		View:     view,
		City:     *city,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start planner")
	}
	defer p.Close()

	accounts, err := account.NewClient(account.ClientConfig{
		BackendURL: cfg.BackendURL,
		Registry:   registry,
		Logger:     log,
	})
	if err != nil {
		log.Warn().Err(err).Msg("account features disabled")
		accounts = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := &shell{
		planner: p,
		account: accounts,
		scene:   func() *mapview.Scene { return scene },
		out:     os.Stdout,
		timeout: 30 * time.Second,
	}

	log.Debug().
		Str("backend", coordinator.Endpoint()).
		Str("city", p.Snapshot().City.Name).
		Msg("citymove ready")

	if err := sh.run(ctx, os.Stdin); err != nil {
		log.Error().Err(err).Msg("reading commands")
	}
}

// newResolver builds the geocoding chain used by the place inputs.
func newResolver(cfg config.Config, registry *resilience.Registry, log zerolog.Logger) *geocode.Resolver {
	var primary geocode.Primary
	if cfg.Geocoding.GoogleAPIKey != "" {
		primary = google.NewLoader(google.LoaderConfig{
			Client: google.ClientConfig{
				APIKey:   cfg.Geocoding.GoogleAPIKey,
				Registry: registry,
				Logger:   log,
			},
			Probe:  true,
			Logger: log,
		})
	}

	return geocode.NewResolver(geocode.ResolverConfig{
		Primary: primary,
		Fallback: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:   cfg.Geocoding.NominatimBaseURL,
			UserAgent: cfg.Geocoding.NominatimUserAgent,
			Registry:  registry,
			Logger:    log,
		}),
		OnResolved: func(label string, point geo.Point) {
			log.Debug().Str("label", label).Str("point", point.String()).Msg("place resolved")
		},
		Logger: log,
	})
}
