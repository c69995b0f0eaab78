// Package planner composes place resolution, route requests and the map view
// into the page shell of the front-end: it owns the selected city, the two
// endpoints, the travel mode and the user-facing route message.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/mapview"
	"github.com/citymove/citymove/internal/routing"
)

// ErrSuperseded is returned when a newer request for the same slot finished
// first, or the slot was reset, and this outcome was discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// User-facing messages.
const (
	MessageSelectEndpoints = "Select both an origin and a destination."
	MessageRouteFailed     = "Could not get a route. Please try again."
)

// Resolver turns a place query into a place.
type Resolver interface {
	Resolve(ctx context.Context, req geocode.Request) (geo.Place, error)
}

// Router completes route queries registered with its State and publishes
// their outcomes there.
type Router interface {
	Complete(ctx context.Context, t routing.Ticket, q routing.Query) routing.Outcome
	State() *routing.RouteState
}

// Endpoint selects which end of the route a place fills.
type Endpoint int

const (
	Origin Endpoint = iota
	Destination
)

func (e Endpoint) String() string {
	if e == Origin {
		return "origin"
	}
	return "destination"
}

// Config holds the planner collaborators.
type Config struct {
	// Resolver resolves origin and destination queries (required).
	Resolver Resolver
	// Router requests routes (required).
	Router Router
	// View is the map the planner drives (optional).
	View *mapview.View
	// City is the initial city name (default: first catalogue entry).
	City string
	// Logger for planner operations.
	Logger zerolog.Logger
}

// Snapshot is what the page shows.
type Snapshot struct {
	SessionID   string
	City        City
	Origin      *geo.Place
	Destination *geo.Place
	Mode        routing.Mode
	Route       *routing.Result
	Explore     []geo.Point
	Pending     bool
	Message     string
}

// Planner is safe for concurrent use. Each endpoint has its own slot so only
// the newest resolution of that endpoint is kept. Inputs that a route depends
// on change only inside route state updates, and mu is taken after the route
// state lock, never before it.
type Planner struct {
	resolver Resolver
	router   Router
	view     *mapview.View
	logger   zerolog.Logger
	session  string

	slots [2]routing.Slot

	mu        sync.Mutex
	city      City
	endpoints [2]*geo.Place
	mode      routing.Mode
	explore   []geo.Point
	message   string
}

// New creates a planner and initializes the map on the selected city.
func New(cfg Config) (*Planner, error) {
	if cfg.Resolver == nil || cfg.Router == nil {
		return nil, errors.New("planner: resolver and router are required")
	}

	city := Cities[0]
	if cfg.City != "" {
		c, err := FindCity(cfg.City)
		if err != nil {
			return nil, fmt.Errorf("planner: %w: %q", err, cfg.City)
		}
		city = c
	}

	p := &Planner{
		resolver: cfg.Resolver,
		router:   cfg.Router,
		view:     cfg.View,
		session:  uuid.NewString(),
		city:     city,
		mode:     routing.ModeDriving,
	}
	p.logger = cfg.Logger.With().Str("session_id", p.session).Logger()

	if p.view != nil {
		if err := p.view.Initialize(city.Center, city.Name); err != nil {
			return nil, fmt.Errorf("planner: initializing map: %w", err)
		}
	}
	p.router.State().Watch(p.onRouteChange)

	return p, nil
}

// SelectCity moves the map to a catalogue city.
func (p *Planner) SelectCity(name string) (City, error) {
	city, err := FindCity(name)
	if err != nil {
		return City{}, err
	}

	p.mu.Lock()
	p.city = city
	p.mu.Unlock()

	if p.view != nil {
		if err := p.view.UpdateMarker(city.Center, city.Name); err != nil {
			return City{}, err
		}
	}
	p.logger.Debug().Str("city", city.Name).Msg("city selected")
	return city, nil
}

// Resolve resolves req and, if it is still the newest request for e, stores
// the place and invalidates the displayed route. On failure the previous
// place is kept.
func (p *Planner) Resolve(ctx context.Context, e Endpoint, req geocode.Request) (geo.Place, error) {
	slot := &p.slots[e]
	ticket := slot.Next()

	place, err := p.resolver.Resolve(ctx, req)
	if err != nil {
		p.logger.Debug().Err(err).
			Str("endpoint", e.String()).
			Str("query", req.Text).
			Msg("place not resolved, keeping previous selection")
		return geo.Place{}, err
	}

	applied := slot.Commit(ticket, func() { p.storeEndpoint(e, place) })
	if !applied {
		return place, ErrSuperseded
	}

	p.logger.Debug().
		Str("endpoint", e.String()).
		Str("label", place.Label).
		Msg("endpoint updated")
	return place, nil
}

// SetEndpoint stores an already resolved place, superseding any resolution in
// flight for e.
func (p *Planner) SetEndpoint(e Endpoint, place geo.Place) error {
	if err := place.Point.Validate(); err != nil {
		return err
	}
	p.slots[e].Invalidate()
	p.storeEndpoint(e, place)
	return nil
}

// storeEndpoint sets e and clears the route in one route state update, so a
// query built from the previous endpoints can never be shown afterwards.
func (p *Planner) storeEndpoint(e Endpoint, place geo.Place) {
	p.router.State().Update(func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.endpoints[e] = &place
		p.explore = nil
		p.message = ""
		return true
	})
}

// SetMode changes the travel mode. A different mode clears the route.
func (p *Planner) SetMode(m routing.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unknown travel mode %q", routing.ErrInvalidInput, m)
	}
	m = m.OrDefault()

	p.router.State().Update(func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		changed := p.mode != m
		p.mode = m
		return changed
	})
	return nil
}

// RequestRoute requests a route between the current endpoints. The map and
// message follow the outcome only while it answers the newest query.
func (p *Planner) RequestRoute(ctx context.Context) (*routing.Result, error) {
	t, q, err := p.router.State().BeginFrom(func() (routing.Query, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		q, err := routing.NewQuery(p.endpoints[Origin], p.endpoints[Destination], p.mode)
		if err != nil {
			p.message = MessageSelectEndpoints
			return routing.Query{}, err
		}
		p.explore = nil
		return q, nil
	})
	if err != nil {
		return nil, err
	}

	out := p.router.Complete(ctx, t, q)
	if !out.Current {
		return nil, ErrSuperseded
	}
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Result, nil
}

// Explore shows a sample loop around the selected city in place of any route.
func (p *Planner) Explore() ([]geo.Point, error) {
	var (
		loop []geo.Point
		err  error
	)
	p.router.State().Update(func() bool {
		p.mu.Lock()
		loop = SampleLoop(p.city.Center)
		p.explore = loop
		p.message = ""
		p.mu.Unlock()

		if p.view != nil {
			err = p.view.UpdateRoute(loop)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return loop, nil
}

// Snapshot returns the page state. The route always answers the endpoints
// and mode it is returned with.
func (p *Planner) Snapshot() Snapshot {
	var snap Snapshot
	p.router.State().Read(func(route routing.Snapshot) {
		p.mu.Lock()
		defer p.mu.Unlock()

		snap = Snapshot{
			SessionID: p.session,
			City:      p.city,
			Mode:      p.mode,
			Route:     route.Result,
			Pending:   route.Pending,
			Message:   p.message,
		}
		if o := p.endpoints[Origin]; o != nil {
			v := *o
			snap.Origin = &v
		}
		if d := p.endpoints[Destination]; d != nil {
			v := *d
			snap.Destination = &v
		}
		if p.explore != nil {
			snap.Explore = append([]geo.Point(nil), p.explore...)
		}
	})
	return snap
}

// Close releases the map.
func (p *Planner) Close() error {
	if p.view == nil {
		return nil
	}
	return p.view.Close()
}

// onRouteChange mirrors route state changes onto the map and the message.
// It runs under the route state lock, so it only touches planner fields and
// the view.
func (p *Planner) onRouteChange(s routing.Snapshot) {
	p.mu.Lock()
	switch {
	case s.Err != nil:
		p.message = MessageRouteFailed
	case s.Result != nil:
		p.message = ""
	}
	exploring := p.explore != nil
	p.mu.Unlock()

	if p.view == nil {
		return
	}

	var path []geo.Point
	if s.Result != nil {
		path = s.Result.Path
	} else if exploring {
		return
	}
	if err := p.view.UpdateRoute(path); err != nil {
		p.logger.Warn().Err(err).Msg("failed to update route on map")
	}
}
