package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citymove/citymove/internal/api/middleware"
)

func TestContentTypeJSON_SetsDefault(t *testing.T) {
	handler := middleware.ContentTypeJSON(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestContentTypeJSON_HandlerOverrides(t *testing.T) {
	handler := middleware.ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/geocode", http.NoBody))

	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json", http.MethodPost, "application/json", http.StatusOK},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"missing", http.MethodPost, "", http.StatusOK},
		{"form", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"text on put", http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
		{"malformed", http.MethodPost, "application/json; =", http.StatusUnsupportedMediaType},
		{"get ignored", http.MethodGet, "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.RequireJSON(okHandler())

			req := httptest.NewRequest(tt.method, "/api/route/", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnsupportedMediaType {
				assert.Contains(t, rec.Body.String(), "unsupported-media-type")
			}
		})
	}
}
