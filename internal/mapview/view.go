// Package mapview owns a single map widget and keeps its marker, route line
// and viewport in step with the page state.
package mapview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/geo"
)

// Sentinel errors for view operations.
var (
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("map view already initialized")
	// ErrNotInitialized is returned by updates before Initialize.
	ErrNotInitialized = errors.New("map view not initialized")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("map view closed")
)

// Defaults for Options.
const (
	DefaultTileURL      = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution  = "&copy; OpenStreetMap contributors"
	DefaultZoom         = 10
	DefaultRoutePadding = 40
)

// DefaultRouteStyle is the stroke of the route line.
var DefaultRouteStyle = LineStyle{Color: "#2563eb", Weight: 4, Opacity: 0.9}

// Options configures a View.
type Options struct {
	// ContainerID is the element the widget is bound to (required).
	ContainerID string
	// TileURL is the base tile layer template (default: OpenStreetMap).
	TileURL string
	// Attribution is shown for the tile layer.
	Attribution string
	// Zoom is the zoom used when centering on a marker (default: 10).
	Zoom int
	// RoutePadding is the fit padding in pixels around a route (default: 40).
	RoutePadding int
	// RouteStyle is the route line stroke (default: DefaultRouteStyle).
	RouteStyle *LineStyle
	// Logger for view operations.
	Logger zerolog.Logger
}

// State is a snapshot of what the map shows.
type State struct {
	Center      geo.Point
	MarkerLabel string
	Route       []geo.Point
}

// View is the only owner of its widget. All mutations go through its methods.
type View struct {
	factory Factory
	opts    Options
	logger  zerolog.Logger

	mu          sync.Mutex
	widget      Widget
	tileLayer   LayerID
	marker      *LayerID
	routeLine   *LayerID
	listeners   []func()
	state       State
	initialized bool
	closed      bool
}

// Open prepares a view. No widget exists until Initialize.
func Open(factory Factory, opts Options) (*View, error) {
	if factory == nil {
		return nil, fmt.Errorf("mapview: nil widget factory")
	}
	if opts.ContainerID == "" {
		return nil, fmt.Errorf("mapview: container id is required")
	}
	if opts.TileURL == "" {
		opts.TileURL = DefaultTileURL
	}
	if opts.Attribution == "" {
		opts.Attribution = DefaultAttribution
	}
	if opts.Zoom == 0 {
		opts.Zoom = DefaultZoom
	}
	if opts.RoutePadding == 0 {
		opts.RoutePadding = DefaultRoutePadding
	}
	if opts.RouteStyle == nil {
		style := DefaultRouteStyle
		opts.RouteStyle = &style
	}

	return &View{factory: factory, opts: opts, logger: opts.Logger}, nil
}

// Initialize creates the widget, its tile layer and the first marker.
// If any step fails the widget is released before returning.
func (v *View) Initialize(center geo.Point, label string) (err error) {
	if err := center.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case v.closed:
		return ErrClosed
	case v.initialized:
		return ErrAlreadyInitialized
	}

	w, err := v.factory(v.opts.ContainerID)
	if err != nil {
		return fmt.Errorf("creating map widget: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := w.Remove(); rmErr != nil {
				v.logger.Warn().Err(rmErr).Msg("failed to release map widget after init error")
			}
		}
	}()

	tile, err := w.AddTileLayer(v.opts.TileURL, v.opts.Attribution)
	if err != nil {
		return fmt.Errorf("adding tile layer: %w", err)
	}
	w.SetView(center, v.opts.Zoom)

	marker, err := w.AddMarker(center, label)
	if err != nil {
		return fmt.Errorf("adding marker: %w", err)
	}

	v.widget = w
	v.tileLayer = tile
	v.marker = &marker
	v.state = State{Center: center, MarkerLabel: label}
	v.initialized = true

	v.logger.Debug().
		Str("container", v.opts.ContainerID).
		Float64("lat", center.Lat).
		Float64("lon", center.Lon).
		Msg("map initialized")
	return nil
}

// UpdateMarker replaces the marker and re-centers the map. Repeating the same
// call leaves the map unchanged.
func (v *View) UpdateMarker(center geo.Point, label string) error {
	if err := center.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.usable(); err != nil {
		return err
	}

	if v.marker != nil {
		v.widget.RemoveLayer(*v.marker)
		v.marker = nil
	}
	id, err := v.widget.AddMarker(center, label)
	if err != nil {
		return fmt.Errorf("adding marker: %w", err)
	}
	v.marker = &id
	v.widget.SetView(center, v.opts.Zoom)

	v.state.Center = center
	v.state.MarkerLabel = label
	return nil
}

// UpdateRoute replaces the route line. A non-empty path is drawn and the
// viewport fitted to it; an empty path leaves no line and keeps the center.
func (v *View) UpdateRoute(path []geo.Point) error {
	if err := geo.ValidatePath(path); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.usable(); err != nil {
		return err
	}

	if v.routeLine != nil {
		v.widget.RemoveLayer(*v.routeLine)
		v.routeLine = nil
	}
	v.state.Route = nil

	bounds, ok := geo.BoundsOf(path)
	if !ok {
		return nil
	}

	route := append([]geo.Point(nil), path...)
	id, err := v.widget.AddPolyline(route, *v.opts.RouteStyle)
	if err != nil {
		return fmt.Errorf("adding route line: %w", err)
	}
	v.routeLine = &id
	v.state.Route = route
	v.widget.FitBounds(bounds, v.opts.RoutePadding)

	v.logger.Debug().Int("points", len(route)).Msg("route drawn")
	return nil
}

// on registers a widget event listener. Close releases it.
func (v *View) on(event string, fn func(Event)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.usable(); err != nil {
		return err
	}
	v.listeners = append(v.listeners, v.widget.On(event, fn))
	return nil
}

// Close releases every listener and the widget. It is safe to call at any
// point, including after a failed Initialize, and more than once.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true

	for _, off := range v.listeners {
		off()
	}
	v.listeners = nil

	if v.widget == nil {
		return nil
	}
	w := v.widget
	v.widget = nil
	v.marker = nil
	v.routeLine = nil
	if err := w.Remove(); err != nil {
		return fmt.Errorf("removing map widget: %w", err)
	}
	return nil
}

// State returns a snapshot of the map state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Route = append([]geo.Point(nil), v.state.Route...)
	if len(s.Route) == 0 {
		s.Route = nil
	}
	return s
}

// Initialized reports whether Initialize succeeded and Close was not called.
func (v *View) Initialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.initialized && !v.closed
}

func (v *View) usable() error {
	switch {
	case v.closed:
		return ErrClosed
	case !v.initialized:
		return ErrNotInitialized
	}
	return nil
}
