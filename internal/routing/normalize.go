package routing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/citymove/citymove/internal/geo"
)

// msThreshold separates millisecond from second values of a bare "time" field.
const msThreshold = 1_000_000

// enginePath is the first element of a routing-engine "paths" array.
type enginePath struct {
	Time   *float64 `json:"time"`
	Points struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"points"`
}

// Normalize converts a routing endpoint body into a Result. Two shapes are
// accepted:
//
//	{"coords": [[lat, lng], ...]}
//	{"paths": [{"time": ms, "points": {"coordinates": [[lng, lat], ...]}}]}
//
// Any other body fails with ErrRouteUnavailable.
func Normalize(body []byte) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, unavailable("MALFORMED_BODY", "route response is not a JSON object")
	}

	var first *enginePath
	if raw, ok := fields["paths"]; ok && !isNull(raw) {
		var paths []enginePath
		if err := json.Unmarshal(raw, &paths); err != nil {
			return nil, unavailable("MALFORMED_PATHS", "route response has malformed paths")
		}
		if len(paths) > 0 {
			first = &paths[0]
		}
	}

	var path []geo.Point
	switch raw, ok := fields["coords"]; {
	case ok && !isNull(raw):
		var coords [][]float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			return nil, unavailable("MALFORMED_COORDS", "route response has malformed coords")
		}
		p, err := pointsFrom(coords, false)
		if err != nil {
			return nil, err
		}
		path = p
	case first != nil:
		p, err := pointsFrom(first.Points.Coordinates, true)
		if err != nil {
			return nil, err
		}
		path = p
	default:
		return nil, unavailable("MISSING_ROUTE", "route response has neither coords nor paths")
	}

	return &Result{Path: path, Duration: extractDuration(fields, first)}, nil
}

// pointsFrom converts coordinate pairs; swap reverses (lng, lat) input.
func pointsFrom(pairs [][]float64, swap bool) ([]geo.Point, error) {
	path := make([]geo.Point, 0, len(pairs))
	for i, c := range pairs {
		if len(c) < 2 {
			return nil, unavailable("MALFORMED_POINT", fmt.Sprintf("route point %d has %d values", i, len(c)))
		}
		if swap {
			path = append(path, geo.Point{Lat: c[1], Lon: c[0]})
		} else {
			path = append(path, geo.Point{Lat: c[0], Lon: c[1]})
		}
	}
	return path, nil
}

// extractDuration returns seconds from the first field that carries a usable
// value, in order: paths[0].time (ms), time, duration, travel_time,
// then the string forms of duration and travel_time.
func extractDuration(fields map[string]json.RawMessage, first *enginePath) *float64 {
	if first != nil && first.Time != nil {
		if d, ok := durationValue(*first.Time / 1000); ok {
			return d
		}
	}

	if v, ok := numberField(fields, "time"); ok {
		if v > msThreshold {
			v /= 1000
		}
		if d, ok := durationValue(v); ok {
			return d
		}
	}

	for _, key := range []string{"duration", "travel_time"} {
		if v, ok := numberField(fields, key); ok {
			if d, ok := durationValue(v); ok {
				return d
			}
		}
	}

	for _, key := range []string{"duration", "travel_time"} {
		if v, ok := stringField(fields, key); ok {
			if d, ok := durationValue(v); ok {
				return d
			}
		}
	}

	return nil
}

// durationValue rejects negative and non-finite values.
func durationValue(v float64) (*float64, bool) {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}

func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func stringField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func unavailable(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: ErrRouteUnavailable}
}
