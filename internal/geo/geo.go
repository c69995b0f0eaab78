// Package geo holds the geographic value types shared by the resolver, the
// route coordinator and the map view.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidPoint indicates a coordinate that is not finite or out of range.
var ErrInvalidPoint = errors.New("invalid point")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Validate checks that both components are finite and inside their ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidPoint)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidPoint, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidPoint, p.Lon)
	}
	return nil
}

// Orb returns the point in orb's [lon, lat] order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point back to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// String formats the point as "lat,lon" with the precision providers expect.
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Place is a place query reduced to a display label and a coordinate.
// Places are values; callers never mutate one after it is produced.
type Place struct {
	Label string `json:"label"`
	Point Point  `json:"point"`
}

// NewPlace builds a Place, rejecting empty labels and invalid points.
func NewPlace(label string, p Point) (Place, error) {
	if label == "" {
		return Place{}, errors.New("place label is required")
	}
	if err := p.Validate(); err != nil {
		return Place{}, err
	}
	return Place{Label: label, Point: p}, nil
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	Min Point
	Max Point
}

// BoundsOf returns the bounding box of a path. ok is false for an empty path.
func BoundsOf(path []Point) (b Bounds, ok bool) {
	if len(path) == 0 {
		return Bounds{}, false
	}
	bound := LineString(path).Bound()
	return Bounds{Min: FromOrb(bound.Min), Max: FromOrb(bound.Max)}, true
}

// LineString converts a path to an orb line in [lon, lat] order.
func LineString(path []Point) orb.LineString {
	ls := make(orb.LineString, 0, len(path))
	for _, p := range path {
		ls = append(ls, p.Orb())
	}
	return ls
}

// PathFromLineString converts an orb line back to a path.
func PathFromLineString(ls orb.LineString) []Point {
	path := make([]Point, 0, len(ls))
	for _, p := range ls {
		path = append(path, FromOrb(p))
	}
	return path
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.Min.Lat + b.Max.Lat) / 2,
		Lon: (b.Min.Lon + b.Max.Lon) / 2,
	}
}

// ValidatePath checks every point of a path.
func ValidatePath(path []Point) error {
	for i, p := range path {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}
