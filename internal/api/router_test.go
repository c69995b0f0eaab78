package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymove/citymove/internal/api"
	"github.com/citymove/citymove/internal/api/models"
	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/provider/resilience"
	"github.com/citymove/citymove/internal/routing"
	"github.com/citymove/citymove/internal/routing/graphhopper"
)

const graphhopperRoute = `{
  "paths": [{
    "distance": 1874.512,
    "time": 1349578,
    "points": {"type": "LineString", "coordinates": [[24.7453, 42.1354], [24.7488, 42.1402], [24.7512, 42.1432]]}
  }]
}`

type testEnv struct {
	router   http.Handler
	upstream atomic.Int32
	query    atomic.Value
}

// newTestEnv wires the router to a real routing service backed by a fake
// GraphHopper server, and to a resolver that knows one place.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstream.Add(1)
		env.query.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, graphhopperRoute)
	}))
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	client := graphhopper.NewClient(graphhopper.ClientConfig{
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
	service := routing.NewService(routing.ServiceConfig{Provider: client, Logger: zerolog.Nop()})

	resolver := geocode.NewResolver(geocode.ResolverConfig{
		Strategies: []geocode.Strategy{
			geocode.Named("static", func(_ context.Context, req geocode.Request) (geo.Place, error) {
				if strings.EqualFold(req.Text, "plovdiv") {
					return geo.Place{Label: "Plovdiv, Bulgaria", Point: geo.Point{Lat: 42.1354, Lon: 24.7453}}, nil
				}
				return geo.Place{}, geocode.ErrNoMatchFound
			}),
		},
		Logger: zerolog.Nop(),
	})

	env.router = api.NewRouter(api.RouterConfig{
		Version:      "test",
		BuildTime:    "2026-01-01T00:00:00Z",
		Logger:       zerolog.New(io.Discard),
		CORSOrigins:  []string{"http://localhost:3000"},
		RouteService: service,
		Resolver:     resolver,
		Registry:     registry,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RouteProxy(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postJSON("/api/route/", `{"start":{"lat":42.1354,"lng":24.7453},"dest":{"lat":42.1432,"lng":24.7512},"vehicle":"cycling"}`))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RouteProxyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Coords, 3)
	assert.Equal(t, [2]float64{42.1354, 24.7453}, resp.Coords[0])
	assert.InDelta(t, 1349.578, resp.Duration, 1e-6)
	assert.NotEmpty(t, resp.Polyline)
	assert.Equal(t, "cycling", resp.Vehicle)

	q, ok := env.query.Load().(url.Values)
	require.True(t, ok)
	assert.Equal(t, "bike", q.Get("vehicle"))
	assert.Equal(t, "test-key", q.Get("key"))
}

func TestRouter_RouteProxyWithoutTrailingSlash(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postJSON("/api/route", `{"start":{"lat":1,"lng":2},"dest":{"lat":3,"lng":4}}`))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RouteProxyIsCached(t *testing.T) {
	env := newTestEnv(t)
	body := `{"start":{"lat":42.1354,"lng":24.7453},"dest":{"lat":42.1432,"lng":24.7512}}`

	require.Equal(t, http.StatusOK, env.do(postJSON("/api/route/", body)).Code)
	require.Equal(t, http.StatusOK, env.do(postJSON("/api/route/", body)).Code)

	assert.Equal(t, int32(1), env.upstream.Load())

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotNil(t, status.RouteCache)
	assert.Equal(t, 1, status.RouteCache.Entries)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "graphhopper", status.Providers[0].Provider)
	assert.NotNil(t, status.Providers[0].LastSuccessAt)
}

func TestRouter_RouteProxyValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(postJSON("/api/route/", `{"start":{"lat":"north","lng":2},"dest":{"lat":3,"lng":4}}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, int32(0), env.upstream.Load())
}

func TestRouter_RouteProxyRequiresJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/route/", strings.NewReader("start=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_RouteProxyNotConfigured(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{Logger: zerolog.Nop()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, postJSON("/api/route/", `{"start":{"lat":1,"lng":2},"dest":{"lat":3,"lng":4}}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "GraphHopper key not configured on server")
}

func TestRouter_Geocode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/geocode?q=Plovdiv", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.GeocodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Plovdiv, Bulgaria", resp.Label)

	w = env.do(httptest.NewRequest(http.MethodGet, "/v1/geocode?q=Atlantis", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_GeocodeNotMountedWithoutResolver(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{Logger: zerolog.Nop()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/geocode?q=x", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_Cities(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CitiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Cities)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodDelete, "/v1/cities", http.NoBody))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/route/", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := env.do(req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom-request-id-123")
	w := env.do(req)

	assert.Equal(t, "custom-request-id-123", w.Header().Get("X-Request-Id"))
}
