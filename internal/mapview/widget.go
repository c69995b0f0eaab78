package mapview

import (
	"github.com/citymove/citymove/internal/geo"
)

// LayerID identifies a layer added to a widget.
type LayerID int

// LineStyle is the stroke used for route lines.
type LineStyle struct {
	Color   string  `json:"color"`
	Weight  int     `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// Event is a user interaction emitted by a widget.
type Event struct {
	Type  string
	Point geo.Point
}

// Event types.
const (
	EventClick   = "click"
	EventMoveEnd = "moveend"
)

// Widget is the mapping library surface driven by a View. Implementations
// need not be safe for concurrent use; the View serializes calls.
type Widget interface {
	// SetView centers the map at zoom.
	SetView(center geo.Point, zoom int)
	// FitBounds moves the viewport so b is visible with padding pixels on every side.
	FitBounds(b geo.Bounds, padding int)
	// AddTileLayer adds a base tile layer with its attribution.
	AddTileLayer(urlTemplate, attribution string) (LayerID, error)
	// AddMarker adds a marker with a popup label.
	AddMarker(at geo.Point, label string) (LayerID, error)
	// AddPolyline adds a line through path.
	AddPolyline(path []geo.Point, style LineStyle) (LayerID, error)
	// RemoveLayer removes a layer. Unknown ids are ignored.
	RemoveLayer(id LayerID)
	// On registers fn for event and returns a function that unregisters it.
	On(event string, fn func(Event)) (off func())
	// Remove destroys the map and releases its container.
	Remove() error
}

// Factory creates a widget bound to a container.
type Factory func(containerID string) (Widget, error)
