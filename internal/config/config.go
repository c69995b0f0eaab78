// Package config loads CityMove settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds application configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level

	Telemetry TelemetryConfig

	// BackendURL is the route and account backend the front-end talks to.
	BackendURL string
	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string
	// RequireTLS rejects API requests forwarded over plain HTTP.
	RequireTLS bool

	Geocoding   GeocodingConfig
	GraphHopper GraphHopperConfig
	// RouteCacheTTL is how long proxied routes are served from cache.
	RouteCacheTTL time.Duration
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

// GeocodingConfig configures the primary and fallback geocoders.
type GeocodingConfig struct {
	GoogleAPIKey       string
	NominatimBaseURL   string
	NominatimUserAgent string
}

// GraphHopperConfig configures the upstream used by the route proxy.
type GraphHopperConfig struct {
	APIKey  string
	BaseURL string
}

// Load reads files (default ".env") into the environment without overriding
// variables that are already set, then builds the configuration. Missing
// files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv builds the configuration from environment variables with defaults.
func FromEnv() (Config, error) {
	var errs []error

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		level = zerolog.InfoLevel
	}

	ttl, err := time.ParseDuration(getEnvOrDefault("ROUTE_CACHE_TTL", "10m"))
	if err != nil {
		errs = append(errs, fmt.Errorf("ROUTE_CACHE_TTL: %w", err))
	}

	otelEnabled, err := strconv.ParseBool(getEnvOrDefault("OTEL_ENABLED", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("OTEL_ENABLED: %w", err))
	}

	requireTLS, err := strconv.ParseBool(getEnvOrDefault("REQUIRE_TLS", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("REQUIRE_TLS: %w", err))
	}

	cfg := Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		LogLevel:    level,
		Telemetry: TelemetryConfig{
			Enabled:      otelEnabled,
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		BackendURL:  getEnvOrDefault("CITYMOVE_BACKEND_URL", "http://127.0.0.1:8000"),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:3000")),
		RequireTLS:  requireTLS,
		Geocoding: GeocodingConfig{
			GoogleAPIKey:       os.Getenv("GOOGLE_MAPS_API_KEY"),
			NominatimBaseURL:   getEnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
			NominatimUserAgent: getEnvOrDefault("NOMINATIM_USER_AGENT", "citymove/1.0"),
		},
		GraphHopper: GraphHopperConfig{
			APIKey:  os.Getenv("GRAPHHOPPER_KEY"),
			BaseURL: getEnvOrDefault("GRAPHHOPPER_BASE_URL", "https://graphhopper.com"),
		},
		RouteCacheTTL: ttl,
	}

	return cfg, errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT: invalid port %q", c.Port))
	}
	for key, raw := range map[string]string{
		"CITYMOVE_BACKEND_URL": c.BackendURL,
		"NOMINATIM_BASE_URL":   c.Geocoding.NominatimBaseURL,
		"GRAPHHOPPER_BASE_URL": c.GraphHopper.BaseURL,
	} {
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if c.Geocoding.NominatimUserAgent == "" {
		errs = append(errs, errors.New("NOMINATIM_USER_AGENT: required by the Nominatim usage policy"))
	}
	if c.RouteCacheTTL < 0 {
		errs = append(errs, errors.New("ROUTE_CACHE_TTL: must not be negative"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the app runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid URL %q", raw)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
