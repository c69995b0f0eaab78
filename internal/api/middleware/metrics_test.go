package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/citymove/citymove/internal/api/middleware"
)

// setupTestMeter installs a meter provider backed by a manual reader.
func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader
}

// counterPoints returns the data points of an int64 counter by name.
func counterPoints(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			return sum.DataPoints
		}
	}
	return nil
}

func attrValue(set attribute.Set, key attribute.Key) string {
	v, ok := set.Value(key)
	if !ok {
		return ""
	}
	return v.Emit()
}

func TestMetrics_RecordsRoutePatternAndStatus(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/cities/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, city := range []string{"sofia", "athens"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cities/"+city, http.NoBody))
	}

	points := counterPoints(t, reader, "http.server.request.total")
	require.Len(t, points, 1, "one series per route pattern")
	assert.Equal(t, int64(2), points[0].Value)
	assert.Equal(t, "/v1/cities/{name}", attrValue(points[0].Attributes, "http.route"))
	assert.Equal(t, "404", attrValue(points[0].Attributes, "http.status_code"))
	assert.Equal(t, "true", attrValue(points[0].Attributes, "error"))
}

func TestMetrics_Middleware_PassesResponseThrough(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestProviderMetrics_RecordRequest(t *testing.T) {
	reader := setupTestMeter(t)
	pm, err := middleware.NewProviderMetrics()
	require.NoError(t, err)

	pm.RecordRequest("nominatim", "geocode", 120*time.Millisecond, nil)
	pm.RecordRequest("nominatim", "geocode", time.Second, context.DeadlineExceeded)
	pm.RecordRequest("route-backend", "route", time.Second, errors.New("HTTP 500"))

	points := counterPoints(t, reader, "provider.request.total")
	require.Len(t, points, 3)

	byType := map[string]int64{}
	for _, p := range points {
		byType[attrValue(p.Attributes, "provider.name")+"/"+attrValue(p.Attributes, "error.type")] += p.Value
	}
	assert.Equal(t, map[string]int64{
		"nominatim/":            1,
		"nominatim/timeout":     1,
		"route-backend/failure": 1,
	}, byType)
}

func TestProviderMetrics_Cache(t *testing.T) {
	reader := setupTestMeter(t)
	pm, err := middleware.NewProviderMetrics()
	require.NoError(t, err)

	pm.RecordCacheHit("graphhopper", "directions")
	pm.RecordCacheHit("graphhopper", "directions")
	pm.RecordCacheMiss("graphhopper", "directions")

	hits := counterPoints(t, reader, "provider.cache.hit")
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].Value)

	misses := counterPoints(t, reader, "provider.cache.miss")
	require.Len(t, misses, 1)
	assert.Equal(t, int64(1), misses[0].Value)
}
