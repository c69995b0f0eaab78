package geocode

import (
	"context"

	"github.com/citymove/citymove/internal/geo"
)

// Strategy is one step of the resolution chain.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, req Request) (geo.Place, error)
}

// StrategyFunc adapts a function to a Strategy.
type StrategyFunc func(ctx context.Context, req Request) (geo.Place, error)

type namedStrategy struct {
	name string
	fn   StrategyFunc
}

func (s namedStrategy) Name() string { return s.name }

func (s namedStrategy) Resolve(ctx context.Context, req Request) (geo.Place, error) {
	return s.fn(ctx, req)
}

// Named wraps fn as a Strategy called name.
func Named(name string, fn StrategyFunc) Strategy {
	return namedStrategy{name: name, fn: fn}
}

// SelectionStrategy uses the geometry of an autocomplete selection directly.
// It is the only strategy that never makes a network call, and it only
// applies while the primary provider is active.
func SelectionStrategy(primary Primary) Strategy {
	return Named("selection", func(ctx context.Context, req Request) (geo.Place, error) {
		sel := req.Selection
		if sel == nil || sel.Point == nil {
			return geo.Place{}, errNotApplicable
		}
		if !primary.Available(ctx) {
			return geo.Place{}, &Error{
				Provider: primary.Name(),
				Code:     "WIDGET_INACTIVE",
				Message:  "autocomplete widget is not active",
				Err:      ErrProviderUnavailable,
			}
		}

		label := sel.FormattedAddress
		if label == "" {
			label = sel.Name
		}
		if label == "" {
			label = req.Text
		}
		return geo.NewPlace(label, *sel.Point)
	})
}

// GeocoderStrategy searches the committed text with g.
func GeocoderStrategy(g Geocoder) Strategy {
	return Named(g.Name(), func(ctx context.Context, req Request) (geo.Place, error) {
		text := req.commitText()
		if text == "" {
			return geo.Place{}, errNotApplicable
		}
		return g.Geocode(ctx, text)
	})
}
