package mapview

import (
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/citymove/citymove/internal/geo"
)

// ErrSceneRemoved is returned when a removed scene is used.
var ErrSceneRemoved = errors.New("scene removed")

const (
	tileSize = 256
	maxZoom  = 19

	// earthCircumference is the Web Mercator world width in meters.
	earthCircumference = 2 * math.Pi * 6378137
)

// LayerKind distinguishes scene layers.
type LayerKind string

const (
	LayerTile     LayerKind = "tile"
	LayerMarker   LayerKind = "marker"
	LayerPolyline LayerKind = "polyline"
)

// Layer is one layer of a Scene.
type Layer struct {
	ID          LayerID
	Kind        LayerKind
	URL         string
	Attribution string
	Label       string
	Path        []geo.Point
	Style       LineStyle
}

// Viewport is the visible part of the map.
type Viewport struct {
	Center geo.Point
	Zoom   int
	Width  int
	Height int
}

// Scene is an in-memory Widget. It keeps layers, listeners and viewport so
// that headless front-ends can render or export the map.
type Scene struct {
	mu          sync.Mutex
	containerID string
	viewport    Viewport
	layers      map[LayerID]Layer
	nextLayer   LayerID
	listeners   map[string]map[int]func(Event)
	nextHandler int
	removed     bool
}

// NewScene creates a scene of the given pixel size.
func NewScene(containerID string, width, height int) *Scene {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 600
	}
	return &Scene{
		containerID: containerID,
		viewport:    Viewport{Width: width, Height: height},
		layers:      make(map[LayerID]Layer),
		listeners:   make(map[string]map[int]func(Event)),
	}
}

// SceneFactory returns a Factory producing scenes of the given size. Every
// scene created is passed to created, if set.
func SceneFactory(width, height int, created func(*Scene)) Factory {
	return func(containerID string) (Widget, error) {
		s := NewScene(containerID, width, height)
		if created != nil {
			created(s)
		}
		return s, nil
	}
}

// ContainerID returns the container the scene is bound to.
func (s *Scene) ContainerID() string {
	return s.containerID
}

// SetView implements Widget.
func (s *Scene) SetView(center geo.Point, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport.Center = center
	s.viewport.Zoom = clampZoom(zoom)
}

// FitBounds implements Widget. It centers on b and picks the highest zoom at
// which b fits inside the viewport less padding on each side.
func (s *Scene) FitBounds(b geo.Bounds, padding int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewport.Center = b.Center()
	s.viewport.Zoom = fitZoom(b, s.viewport.Width-2*padding, s.viewport.Height-2*padding)
}

// AddTileLayer implements Widget.
func (s *Scene) AddTileLayer(urlTemplate, attribution string) (LayerID, error) {
	return s.add(Layer{Kind: LayerTile, URL: urlTemplate, Attribution: attribution})
}

// AddMarker implements Widget.
func (s *Scene) AddMarker(at geo.Point, label string) (LayerID, error) {
	return s.add(Layer{Kind: LayerMarker, Label: label, Path: []geo.Point{at}})
}

// AddPolyline implements Widget.
func (s *Scene) AddPolyline(path []geo.Point, style LineStyle) (LayerID, error) {
	return s.add(Layer{Kind: LayerPolyline, Path: append([]geo.Point(nil), path...), Style: style})
}

func (s *Scene) add(l Layer) (LayerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return 0, ErrSceneRemoved
	}
	s.nextLayer++
	l.ID = s.nextLayer
	s.layers[l.ID] = l
	return l.ID, nil
}

// RemoveLayer implements Widget.
func (s *Scene) RemoveLayer(id LayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layers, id)
}

// On implements Widget.
func (s *Scene) On(event string, fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHandler++
	id := s.nextHandler
	if s.listeners[event] == nil {
		s.listeners[event] = make(map[int]func(Event))
	}
	s.listeners[event][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[event], id)
		if len(s.listeners[event]) == 0 {
			delete(s.listeners, event)
		}
	}
}

// Emit delivers e to the listeners registered for its type.
func (s *Scene) Emit(e Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners[e.Type]))
	for _, fn := range s.listeners[e.Type] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Remove implements Widget. Layers and listeners are dropped.
func (s *Scene) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return ErrSceneRemoved
	}
	s.removed = true
	s.layers = make(map[LayerID]Layer)
	s.listeners = make(map[string]map[int]func(Event))
	return nil
}

// Removed reports whether Remove was called.
func (s *Scene) Removed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

// Viewport returns the current viewport.
func (s *Scene) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// Layers returns the layers in the order they were added.
func (s *Scene) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Layer, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LayersOf returns the layers of one kind.
func (s *Scene) LayersOf(kind LayerKind) []Layer {
	var out []Layer
	for _, l := range s.Layers() {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// ListenerCount returns the number of registered listeners.
func (s *Scene) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.listeners {
		n += len(m)
	}
	return n
}

// FeatureCollection renders markers and route lines as GeoJSON. Tile
// attribution and the viewport are carried as foreign members.
func (s *Scene) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	var attributions []string

	for _, l := range s.Layers() {
		switch l.Kind {
		case LayerTile:
			attributions = append(attributions, l.Attribution)
		case LayerMarker:
			f := geojson.NewFeature(l.Path[0].Orb())
			f.Properties["kind"] = string(LayerMarker)
			f.Properties["label"] = l.Label
			fc.Append(f)
		case LayerPolyline:
			ls := geo.LineString(l.Path)
			f := geojson.NewFeature(ls)
			f.Properties["kind"] = string(LayerPolyline)
			f.Properties["stroke"] = l.Style.Color
			f.Properties["stroke-width"] = l.Style.Weight
			f.Properties["stroke-opacity"] = l.Style.Opacity
			f.BBox = geojson.NewBBox(ls.Bound())
			fc.Append(f)
		}
	}

	vp := s.Viewport()
	fc.ExtraMembers = geojson.Properties{
		"attribution": attributions,
		"center":      []float64{vp.Center.Lon, vp.Center.Lat},
		"zoom":        vp.Zoom,
	}
	return fc
}

// GeoJSON returns FeatureCollection encoded as JSON.
func (s *Scene) GeoJSON() ([]byte, error) {
	return s.FeatureCollection().MarshalJSON()
}

// fitZoom returns the highest zoom at which b spans at most width x height pixels.
func fitZoom(b geo.Bounds, width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}

	lo := project.WGS84.ToMercator(b.Min.Orb())
	hi := project.WGS84.ToMercator(b.Max.Orb())
	spanX := math.Abs(hi.X() - lo.X())
	spanY := math.Abs(hi.Y() - lo.Y())

	for z := maxZoom; z > 0; z-- {
		metersPerPixel := earthCircumference / (tileSize * math.Exp2(float64(z)))
		if spanX/metersPerPixel <= float64(width) && spanY/metersPerPixel <= float64(height) {
			return z
		}
	}
	return 0
}

func clampZoom(z int) int {
	switch {
	case z < 0:
		return 0
	case z > maxZoom:
		return maxZoom
	}
	return z
}
