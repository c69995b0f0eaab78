// Package routing requests routes between two resolved places and normalizes
// the routing endpoint's responses. It also holds the provider-side cache used
// by the route proxy.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/citymove/citymove/internal/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrInvalidInput indicates a query with a missing or malformed endpoint.
	// Such queries are never sent over the network.
	ErrInvalidInput = errors.New("invalid route input")
	// ErrRouteUnavailable indicates the routing endpoint answered with a
	// non-success status, an unparseable body, or no route fields.
	ErrRouteUnavailable = errors.New("route unavailable")
	// ErrProviderUnavailable indicates the upstream routing provider is down,
	// not configured, or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Mode is the travel mode of a query.
type Mode string

const (
	ModeWalking Mode = "walking"
	ModeCycling Mode = "cycling"
	ModeDriving Mode = "driving"
)

// Modes lists the supported travel modes.
var Modes = []Mode{ModeWalking, ModeCycling, ModeDriving}

// OrDefault returns the mode, or ModeDriving for the zero value.
func (m Mode) OrDefault() Mode {
	if m == "" {
		return ModeDriving
	}
	return m
}

// Valid reports whether m is a known mode. The zero value is valid.
func (m Mode) Valid() bool {
	switch m {
	case "", ModeWalking, ModeCycling, ModeDriving:
		return true
	}
	return false
}

// ParseMode parses a mode name case-insensitively. An empty string yields
// ModeDriving.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown travel mode %q", ErrInvalidInput, s)
	}
	return m.OrDefault(), nil
}

// Query is a route request between two resolved places.
type Query struct {
	Origin      geo.Place
	Destination geo.Place
	Mode        Mode
}

// NewQuery builds a query. Both endpoints must be set and valid.
func NewQuery(origin, destination *geo.Place, mode Mode) (Query, error) {
	if origin == nil || destination == nil {
		return Query{}, fmt.Errorf("%w: origin and destination are required", ErrInvalidInput)
	}
	q := Query{Origin: *origin, Destination: *destination, Mode: mode.OrDefault()}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks both endpoints and the mode.
func (q Query) Validate() error {
	if err := q.Origin.Point.Validate(); err != nil {
		return fmt.Errorf("%w: origin: %v", ErrInvalidInput, err)
	}
	if err := q.Destination.Point.Validate(); err != nil {
		return fmt.Errorf("%w: destination: %v", ErrInvalidInput, err)
	}
	if !q.Mode.Valid() {
		return fmt.Errorf("%w: unknown travel mode %q", ErrInvalidInput, q.Mode)
	}
	return nil
}

// Result is a normalized route.
type Result struct {
	// Path is the ordered route geometry, possibly empty.
	Path []geo.Point
	// Duration is the travel time in seconds, nil when the response had none.
	// Never negative.
	Duration *float64
}

// DurationSeconds returns the duration and whether it is present.
func (r *Result) DurationSeconds() (float64, bool) {
	if r == nil || r.Duration == nil {
		return 0, false
	}
	return *r.Duration, true
}

// Provider defines the interface for upstream routing engines used by the proxy.
type Provider interface {
	// GetDirections retrieves a route between two points.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedModes returns the travel modes this provider supports.
	SupportedModes() []Mode
}

// CacheRecorder receives route cache lookups.
type CacheRecorder interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// DirectionsRequest is the request for computing a route upstream.
type DirectionsRequest struct {
	Origin      geo.Point
	Destination geo.Point
	Mode        Mode
}

// DirectionsResponse is the upstream response.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route represents a single upstream route.
type Route struct {
	Path            []geo.Point // Ordered (lat, lng) points
	DistanceMeters  float64     // Total distance in meters
	DurationSeconds float64     // Total duration in seconds
	BoundingBox     *geo.Bounds // Geographic bounding box
}

// Error provides detailed error information from routing.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the user may retry.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) ||
		errors.Is(e.Err, ErrRateLimitExceeded) ||
		errors.Is(e.Err, ErrRouteUnavailable)
}
