// Package polyline encodes and decodes route geometry in the Google encoded
// polyline format: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
//
// Lines are orb.LineStrings, so points are [lon, lat]; the encoded form keeps
// the format's (lat, lon) order.
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// DefaultPrecision is the number of decimal places used by Google and
// GraphHopper encoded polylines.
const DefaultPrecision = 5

// ErrMalformed is returned when an encoded polyline ends mid-value or
// contains bytes outside the format's alphabet.
var ErrMalformed = errors.New("malformed polyline")

// Encode encodes a line with DefaultPrecision.
func Encode(ls orb.LineString) string {
	return EncodeWithPrecision(ls, DefaultPrecision)
}

// EncodeWithPrecision encodes a line keeping precision decimal places.
func EncodeWithPrecision(ls orb.LineString, precision int) string {
	if len(ls) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	encoded := make([]byte, 0, len(ls)*6)
	var prevLat, prevLon int

	for _, p := range ls {
		lat := int(math.Round(p.Lat() * factor))
		lon := int(math.Round(p.Lon() * factor))

		encoded = appendValue(encoded, lat-prevLat)
		encoded = appendValue(encoded, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(encoded)
}

// Decode decodes a line encoded with DefaultPrecision.
func Decode(encoded string) (orb.LineString, error) {
	return DecodeWithPrecision(encoded, DefaultPrecision)
}

// DecodeWithPrecision decodes a line encoded with precision decimal places.
func DecodeWithPrecision(encoded string, precision int) (orb.LineString, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	var (
		ls       orb.LineString
		lat, lon int
		index    int
	)

	for index < len(encoded) {
		latDelta, next, err := readValue(encoded, index)
		if err != nil {
			return nil, err
		}
		lonDelta, next, err := readValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += latDelta
		lon += lonDelta
		ls = append(ls, orb.Point{float64(lon) / factor, float64(lat) / factor})
	}

	return ls, nil
}

// readValue reads one zigzag-encoded delta starting at index and returns it
// with the index of the next value.
func readValue(encoded string, index int) (int, int, error) {
	var result, shift int

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, ErrMalformed
		}
		index++

		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

func appendValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}

// Length returns the haversine length of a line in meters.
func Length(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}
	return geo.LengthHaversine(ls)
}
