// Package geocode resolves free-text place queries to a label and coordinate
// by trying an ordered list of strategies.
package geocode

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/citymove/citymove/internal/geo"
)

// Sentinel errors for geocoding operations.
var (
	// ErrNoMatchFound indicates every provider was tried and none matched.
	ErrNoMatchFound = errors.New("no match found")
	// ErrProviderUnavailable indicates a provider is not configured, failed to
	// load, or is temporarily unreachable. The resolver moves on to the next strategy.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	// ErrEmptyQuery indicates a request with neither text nor a selection.
	ErrEmptyQuery = errors.New("empty geocoding query")

	// errNotApplicable marks a strategy that has nothing to do for a request.
	errNotApplicable = errors.New("strategy not applicable")
)

// Selection is a suggestion the user picked from the primary provider's
// autocomplete list. Point is nil when the suggestion carried no geometry.
type Selection struct {
	FormattedAddress string     `json:"formattedAddress,omitempty"`
	Name             string     `json:"name,omitempty"`
	Point            *geo.Point `json:"point,omitempty"`
}

// Request is a single resolution attempt.
type Request struct {
	// Text is the raw input committed by the user (Enter or focus loss).
	Text string
	// Selection is set when the user picked an autocomplete suggestion.
	Selection *Selection
}

// commitText returns the text a geocoder should search for.
func (r Request) commitText() string {
	if r.Text != "" {
		return r.Text
	}
	if r.Selection != nil {
		if r.Selection.FormattedAddress != "" {
			return r.Selection.FormattedAddress
		}
		return r.Selection.Name
	}
	return ""
}

func (r Request) normalized() Request {
	r.Text = strings.TrimSpace(r.Text)
	return r
}

// Geocoder turns text into the first matching place.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (geo.Place, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Primary is the mapping provider that also backs the autocomplete widget.
type Primary interface {
	Geocoder
	// Available reports whether the provider loaded and has a credential.
	Available(ctx context.Context) bool
}

// Recorder receives provider call measurements.
type Recorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// Error provides detailed error information from a geocoding provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
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

// IsFallbackable returns true if the next strategy should be tried.
func (e *Error) IsFallbackable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrNoMatchFound)
}
