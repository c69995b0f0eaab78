package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error response, written with Content-Type
// application/problem+json.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is the request path of this occurrence.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request identifier for debugging.
	TraceID string `json:"traceId"`

	// Errors contains structured field validation errors.
	Errors []FieldError `json:"errors,omitempty"`

	// Error repeats Detail for clients that read the {"error": "..."} shape.
	Error string `json:"error,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://api.citymove.app/problems/"

// Problem types.
const (
	ProblemTypeValidation       = problemBase + "validation-error"
	ProblemTypeNotFound         = problemBase + "not-found"
	ProblemTypeUnsupportedMedia = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests  = problemBase + "too-many-requests"
	ProblemTypeTLSRequired      = problemBase + "tls-required"
	ProblemTypeInternal         = problemBase + "internal-error"
	ProblemTypeMisconfigured    = problemBase + "not-configured"
	ProblemTypeUpstream         = problemBase + "upstream-error"
	ProblemTypeUnavailable      = problemBase + "service-unavailable"
)

// NewProblem creates a Problem.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the detail message.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the request instance URI.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors sets the field errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	if p.Error == "" {
		p.Error = p.Detail
	}
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func newDetailed(problemType, title string, status int, traceID, detail string) *Problem {
	return NewProblem(problemType, title, status, traceID).WithDetail(detail)
}

// NewBadRequest creates a 400 validation problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return newDetailed(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail).WithErrors(errors)
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewUnsupportedMediaType creates a 415 problem.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType, traceID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewTLSRequired creates a 403 problem for plain HTTP requests.
func NewTLSRequired(traceID string) *Problem {
	return newDetailed(ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, traceID, "This endpoint requires HTTPS")
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewNotConfigured creates a 500 problem for a server missing a credential
// or collaborator.
func NewNotConfigured(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeMisconfigured, "Not configured", http.StatusInternalServerError, traceID, detail)
}

// NewBadGateway creates a 502 problem carrying the upstream's message.
func NewBadGateway(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeUpstream, "Upstream error", http.StatusBadGateway, traceID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
