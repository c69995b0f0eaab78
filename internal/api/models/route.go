package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RouteProxyRequest is the body of POST /api/route/.
type RouteProxyRequest struct {
	Start   *Coordinate `json:"start"`
	Dest    *Coordinate `json:"dest"`
	Vehicle string      `json:"vehicle,omitempty"`
}

// Coordinate accepts lat and lng as JSON numbers or numeric strings. Parsing
// is deferred so a missing endpoint and a non-numeric one can be told apart.
type Coordinate struct {
	Lat json.RawMessage `json:"lat"`
	Lng json.RawMessage `json:"lng"`
}

// LatLng parses the coordinate.
func (c *Coordinate) LatLng() (LatLng, error) {
	lat, err := parseNumber(c.Lat)
	if err != nil {
		return LatLng{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := parseNumber(c.Lng)
	if err != nil {
		return LatLng{}, fmt.Errorf("lng: %w", err)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return f, nil
}

// RouteProxyResponse is the body of a successful route proxy call. Coords
// are [lat, lng] pairs.
type RouteProxyResponse struct {
	Coords   [][2]float64 `json:"coords"`
	Duration float64      `json:"duration"`
	Distance float64      `json:"distance"`
	Polyline string       `json:"polyline"`
	Vehicle  string       `json:"vehicle"`
}
