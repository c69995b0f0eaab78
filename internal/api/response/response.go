// Package response writes JSON and problem responses for the API handlers.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/citymove/citymove/internal/api/middleware"
	"github.com/citymove/citymove/internal/api/models"
)

// JSON writes data as a JSON response with the given status code and the
// request's X-Request-Id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Cacheable marks a response as cacheable by the client for maxAge.
func Cacheable(w http.ResponseWriter, maxAge time.Duration) {
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(maxAge.Seconds())))
}

// Error writes a problem response for the request path.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// TooManyRequests writes a 429 response, with Retry-After when retryAfter
// is positive.
func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	Error(w, r, models.NewTooManyRequests(traceID(r), detail))
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// NotConfigured writes a 500 response for a missing server-side setting.
func NotConfigured(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotConfigured(traceID(r), detail))
}

// BadGateway writes a 502 response carrying the upstream's message.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewBadGateway(traceID(r), detail))
}

// ServiceUnavailable writes a 503 response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
