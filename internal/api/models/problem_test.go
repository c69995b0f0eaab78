package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymove/citymove/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("start and dest required").
		WithInstance("/api/route/").
		WithErrors([]models.FieldError{{Field: "start", Message: "required", Code: "REQUIRED"}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "start and dest required", p.Detail)
	assert.Equal(t, "/api/route/", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "REQUIRED", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "start and dest required", []models.FieldError{
		{Field: "dest", Message: "required"},
	})
	p.Instance = "/api/route/"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, "start and dest required", result.Detail)
	assert.Equal(t, "start and dest required", result.Error, "error mirrors detail")
	assert.Equal(t, "/api/route/", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "dest", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Empty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		typ    string
		title  string
		status int
	}{
		{"not found", models.NewNotFound("r", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"unsupported media", models.NewUnsupportedMediaType("r", "d"), models.ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType},
		{"too many requests", models.NewTooManyRequests("r", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError("r", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"not configured", models.NewNotConfigured("r", "d"), models.ProblemTypeMisconfigured, "Not configured", http.StatusInternalServerError},
		{"bad gateway", models.NewBadGateway("r", "d"), models.ProblemTypeUpstream, "Upstream error", http.StatusBadGateway},
		{"unavailable", models.NewServiceUnavailable("r", "d"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.p.Type)
			assert.Equal(t, tt.title, tt.p.Title)
			assert.Equal(t, tt.status, tt.p.Status)
			assert.Equal(t, "d", tt.p.Detail)
			assert.Equal(t, "r", tt.p.TraceID)
		})
	}

	tls := models.NewTLSRequired("r")
	assert.Equal(t, http.StatusForbidden, tls.Status)
	assert.Equal(t, "This endpoint requires HTTPS", tls.Detail)
}

func TestCoordinate_LatLng(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.LatLng
		wantErr string
	}{
		{name: "numbers", body: `{"lat":42.1354,"lng":24.7453}`, want: models.LatLng{Lat: 42.1354, Lng: 24.7453}},
		{name: "numeric strings", body: `{"lat":" 42.1354","lng":"24.7453"}`, want: models.LatLng{Lat: 42.1354, Lng: 24.7453}},
		{name: "missing lng", body: `{"lat":42.1}`, wantErr: "lng: missing"},
		{name: "null lat", body: `{"lat":null,"lng":1}`, wantErr: "lat: missing"},
		{name: "word", body: `{"lat":"north","lng":1}`, wantErr: "lat: not a number"},
		{name: "object", body: `{"lat":1,"lng":{}}`, wantErr: "lng: not a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c models.Coordinate
			require.NoError(t, json.Unmarshal([]byte(tt.body), &c))

			got, err := c.LatLng()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	ts := models.Timestamp(time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-10-19T08:30:00Z"`, string(data))

	var back models.Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ts.Time().Equal(back.Time()))

	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &back))
}
