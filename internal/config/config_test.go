package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_PORT", "APP_ENV", "LOG_LEVEL", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"CITYMOVE_BACKEND_URL", "CORS_ORIGINS", "GOOGLE_MAPS_API_KEY",
	"NOMINATIM_BASE_URL", "NOMINATIM_USER_AGENT", "GRAPHHOPPER_KEY",
	"GRAPHHOPPER_BASE_URL", "ROUTE_CACHE_TTL", "REQUIRE_TLS",
}

// clearEnv blanks every key for the test; empty values fall back to defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.BackendURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.RequireTLS)
	assert.Empty(t, cfg.Geocoding.GoogleAPIKey)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocoding.NominatimBaseURL)
	assert.Equal(t, "citymove/1.0", cfg.Geocoding.NominatimUserAgent)
	assert.Equal(t, "https://graphhopper.com", cfg.GraphHopper.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.RouteCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("GRAPHHOPPER_KEY", "gh-key")
	t.Setenv("ROUTE_CACHE_TTL", "90s")
	t.Setenv("REQUIRE_TLS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "gh-key", cfg.GraphHopper.APIKey)
	assert.Equal(t, 90*time.Second, cfg.RouteCacheTTL)
	assert.True(t, cfg.RequireTLS)
}

func TestFromEnv_ReportsParseErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")
	t.Setenv("ROUTE_CACHE_TTL", "soon")
	t.Setenv("OTEL_ENABLED", "maybe")

	_, err := FromEnv()
	require.Error(t, err)
	assert.ErrorContains(t, err, "LOG_LEVEL")
	assert.ErrorContains(t, err, "ROUTE_CACHE_TTL")
	assert.ErrorContains(t, err, "OTEL_ENABLED")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{
		Port:          "http",
		BackendURL:    "127.0.0.1:8000",
		Geocoding:     GeocodingConfig{NominatimBaseURL: "ftp://x"},
		GraphHopper:   GraphHopperConfig{BaseURL: "https://graphhopper.com"},
		RouteCacheTTL: -time.Second,
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"APP_PORT", "CITYMOVE_BACKEND_URL", "NOMINATIM_BASE_URL", "NOMINATIM_USER_AGENT", "ROUTE_CACHE_TTL"} {
		assert.ErrorContains(t, err, want)
	}
	assert.NotContains(t, err.Error(), "GRAPHHOPPER_BASE_URL")
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "7000")
	// godotenv only fills variables that are absent from the environment.
	require.NoError(t, os.Unsetenv("GRAPHHOPPER_KEY"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9999\nGRAPHHOPPER_KEY=from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "from-file", cfg.GraphHopper.APIKey)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
