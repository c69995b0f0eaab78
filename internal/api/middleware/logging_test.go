package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/citymove/citymove/internal/api/middleware"
)

func decodeLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer

	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("response body"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody)
	req.Header.Set("User-Agent", "test-agent")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogEntry(t, &buf)
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/cities", entry["path"])
	assert.Equal(t, "/v1/cities", entry["route"], "raw path outside a chi router")
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(13), entry["bytes"])
	assert.Equal(t, "test-agent", entry["user_agent"])
	assert.NotContains(t, entry, "trace_id")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  string
	}{
		{path: "/api/route/", status: http.StatusBadGateway, level: "error"},
		{path: "/api/route/", status: http.StatusBadRequest, level: "warn"},
		{path: "/v1/ops/health", status: http.StatusOK, level: "debug"},
		{path: "/v1/ops/ready", status: http.StatusServiceUnavailable, level: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			entry := decodeLogEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestLogger_UsesRoutePattern(t *testing.T) {
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/v1/cities/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cities/sofia", http.NoBody))

	entry := decodeLogEntry(t, &buf)
	assert.Equal(t, "/v1/cities/sofia", entry["path"])
	assert.Equal(t, "/v1/cities/{name}", entry["route"])
}

func TestLogger_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer

	handler := middleware.RequestID(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody))

	entry := decodeLogEntry(t, &buf)
	requestID, ok := entry["request_id"].(string)
	assert.True(t, ok)
	assert.Contains(t, requestID, "req_")
}

func TestLogger_IncludesTraceID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	handler := middleware.Tracing("test-service")(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody))

	entry := decodeLogEntry(t, &buf)
	traceID, ok := entry["trace_id"].(string)
	assert.True(t, ok)
	assert.Len(t, traceID, 32)

	spanID, ok := entry["span_id"].(string)
	assert.True(t, ok)
	assert.Len(t, spanID, 16)
}

func TestLogger_DefaultStatusCode(t *testing.T) {
	var buf bytes.Buffer

	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody))

	assert.Equal(t, float64(200), decodeLogEntry(t, &buf)["status"])
}
