package planner

import (
	"errors"
	"strings"

	"github.com/citymove/citymove/internal/geo"
)

// ErrUnknownCity is returned for a city not in the catalogue.
var ErrUnknownCity = errors.New("unknown city")

// City is an entry of the city catalogue.
type City struct {
	Name   string    `json:"name"`
	Center geo.Point `json:"center"`
	Info   string    `json:"info"`
}

// Cities is the catalogue offered by the city picker. The first entry is the
// default selection.
var Cities = []City{
	{Name: "Plovdiv", Center: geo.Point{Lat: 42.1354, Lon: 24.7453}, Info: "Historic city in Bulgaria."},
	{Name: "Sofia", Center: geo.Point{Lat: 42.6977, Lon: 23.3219}, Info: "Capital of Bulgaria."},
	{Name: "Athens", Center: geo.Point{Lat: 37.9838, Lon: 23.7275}, Info: "Capital of Greece."},
	{Name: "Thessaloniki", Center: geo.Point{Lat: 40.6401, Lon: 22.9444}, Info: "Greece's second city."},
	{Name: "Bratislava", Center: geo.Point{Lat: 48.1486, Lon: 17.1077}, Info: "Capital of Slovakia."},
	{Name: "Poprad", Center: geo.Point{Lat: 49.0597, Lon: 20.2976}, Info: "Gateway to the High Tatras."},
}

// FindCity looks a city up by name, ignoring case and surrounding space.
func FindCity(name string) (City, error) {
	name = strings.TrimSpace(name)
	for _, c := range Cities {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return City{}, ErrUnknownCity
}

// loopOffsets are the (lat, lon) offsets of the sample loop around a centre.
var loopOffsets = [][2]float64{
	{0.02, -0.02},
	{0.01, 0.03},
	{-0.02, 0.01},
	{-0.01, -0.03},
	{0.02, -0.02},
}

// SampleLoop returns a closed demonstration route around center.
func SampleLoop(center geo.Point) []geo.Point {
	loop := make([]geo.Point, 0, len(loopOffsets))
	for _, o := range loopOffsets {
		loop = append(loop, geo.Point{Lat: center.Lat + o[0], Lon: center.Lon + o[1]})
	}
	return loop
}
