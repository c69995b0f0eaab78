package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
)

// ResolverConfig holds configuration for the resolver.
type ResolverConfig struct {
	// Primary is the mapping provider behind the autocomplete widget (optional).
	Primary Primary

	// Fallback is the public geocoder tried last (optional).
	Fallback Geocoder

	// Strategies replaces the chain built from Primary and Fallback (optional).
	Strategies []Strategy

	// OnResolved is invoked with the label and point of every success (optional).
	OnResolved func(label string, point geo.Point)

	// Recorder receives per-strategy timings (optional).
	Recorder Recorder

	// Logger for resolver operations.
	Logger zerolog.Logger
}

// Resolver resolves text or autocomplete selections to places.
type Resolver struct {
	strategies []Strategy
	onResolved func(label string, point geo.Point)
	recorder   Recorder
	logger     zerolog.Logger
}

// NewResolver creates a resolver. Without explicit strategies the chain is:
// widget selection, primary geocoder, fallback geocoder.
func NewResolver(cfg ResolverConfig) *Resolver {
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		if cfg.Primary != nil {
			strategies = append(strategies, SelectionStrategy(cfg.Primary), GeocoderStrategy(cfg.Primary))
		}
		if cfg.Fallback != nil {
			strategies = append(strategies, GeocoderStrategy(cfg.Fallback))
		}
	}

	return &Resolver{
		strategies: strategies,
		onResolved: cfg.OnResolved,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
	}
}

// Strategies returns the names of the configured strategies in order.
func (r *Resolver) Strategies() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Resolve tries each strategy in order and returns the first place found.
// When all of them fail the error wraps ErrNoMatchFound and nothing is reported
// to OnResolved, so callers keep whatever they resolved before.
func (r *Resolver) Resolve(ctx context.Context, req Request) (geo.Place, error) {
	req = req.normalized()
	if req.Text == "" && req.Selection == nil {
		return geo.Place{}, ErrEmptyQuery
	}

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return geo.Place{}, err
		}

		start := time.Now()
		place, err := s.Resolve(ctx, req)
		if errors.Is(err, errNotApplicable) {
			continue
		}
		if r.recorder != nil {
			r.recorder.RecordRequest(s.Name(), "geocode", time.Since(start), err)
		}

		if err == nil {
			if verr := place.Point.Validate(); verr != nil || place.Label == "" {
				r.logger.Warn().
					Str("strategy", s.Name()).
					Str("label", place.Label).
					Msg("strategy returned an unusable place, trying next")
				continue
			}

			r.logger.Debug().
				Str("strategy", s.Name()).
				Str("label", place.Label).
				Float64("lat", place.Point.Lat).
				Float64("lon", place.Point.Lon).
				Msg("place resolved")

			if r.onResolved != nil {
				r.onResolved(place.Label, place.Point)
			}
			return place, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return geo.Place{}, ctxErr
		}

		event := r.logger.Warn()
		if isExpectedMiss(err) {
			event = r.logger.Debug()
		}
		event.Err(err).
			Str("strategy", s.Name()).
			Str("query", req.commitText()).
			Msg("geocoding strategy failed, trying next")
	}

	r.logger.Warn().
		Str("query", req.commitText()).
		Msg("no geocoding provider matched")

	return geo.Place{}, &Error{
		Code:    "NO_MATCH",
		Message: "no provider matched the query",
		Err:     ErrNoMatchFound,
	}
}

// isExpectedMiss reports whether err is an ordinary reason to fall back: the
// provider is unavailable or found nothing. Anything else is a provider fault.
func isExpectedMiss(err error) bool {
	var geoErr *Error
	if errors.As(err, &geoErr) {
		return geoErr.IsFallbackable()
	}
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrNoMatchFound)
}
