package polyline

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// pt builds an orb point from (lat, lon) for readability.
func pt(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

func TestDecode_ValidPolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected orb.LineString
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: orb.LineString{pt(38.5, -120.2)},
		},
		{
			name:     "two points",
			encoded:  "_p~iF~ps|U_ulLnnqC",
			expected: orb.LineString{pt(38.5, -120.2), pt(40.7, -120.95)},
		},
		{
			name:     "three points - Google example",
			encoded:  "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: orb.LineString{pt(38.5, -120.2), pt(40.7, -120.95), pt(43.252, -126.453)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d points, got %d", len(tt.expected), len(result))
			}
			for i, p := range result {
				if !pointsEqual(p, tt.expected[i], 0.001) {
					t.Errorf("point %d: expected %v, got %v", i, tt.expected[i], p)
				}
			}
		})
	}
}

func TestDecode_EmptyString(t *testing.T) {
	result, err := Decode("")
	if err != nil || result != nil {
		t.Errorf("expected nil, nil for empty string, got %v, %v", result, err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "truncated value", encoded: "_p~iF~ps|"},
		{name: "latitude without longitude", encoded: "_p~iF"},
		{name: "byte below alphabet", encoded: "_p~iF ps|U"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEncode_GoogleExample(t *testing.T) {
	ls := orb.LineString{pt(38.5, -120.2), pt(40.7, -120.95), pt(43.252, -126.453)}
	if got, want := Encode(ls), "_p~iF~ps|U_ulLnnqC_mqNvxq`@"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ls   orb.LineString
	}{
		{name: "single point", ls: orb.LineString{pt(38.5, -120.2)}},
		{name: "Plovdiv to Sofia", ls: orb.LineString{pt(42.1354, 24.7453), pt(42.6977, 23.3219)}},
		{name: "southern and western hemispheres", ls: orb.LineString{pt(-33.8688, 151.2093), pt(-34.6037, -58.3816)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.ls)
			if encoded == "" {
				t.Fatal("expected non-empty encoded string")
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("round-trip: %v", err)
			}
			if len(decoded) != len(tt.ls) {
				t.Fatalf("round-trip: expected %d points, got %d", len(tt.ls), len(decoded))
			}
			for i, p := range decoded {
				if !pointsEqual(p, tt.ls[i], 0.00001) {
					t.Errorf("round-trip point %d: expected %v, got %v", i, tt.ls[i], p)
				}
			}
		})
	}
}

func TestPrecision6(t *testing.T) {
	ls := orb.LineString{pt(42.135412, 24.745318), pt(42.135498, 24.745201)}

	decoded, err := DecodeWithPrecision(EncodeWithPrecision(ls, 6), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range decoded {
		if !pointsEqual(p, ls[i], 0.000001) {
			t.Errorf("point %d lost precision: expected %v, got %v", i, ls[i], p)
		}
	}
}

func TestEncode_Empty(t *testing.T) {
	if result := Encode(nil); result != "" {
		t.Errorf("expected empty string for nil line, got %q", result)
	}
	if result := Encode(orb.LineString{}); result != "" {
		t.Errorf("expected empty string for empty line, got %q", result)
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name           string
		ls             orb.LineString
		expectedMeters float64
		tolerance      float64
	}{
		{name: "empty", ls: nil},
		{name: "single point", ls: orb.LineString{pt(42.0, 24.0)}},
		{
			name:           "Plovdiv to Sofia - roughly 130km",
			ls:             orb.LineString{pt(42.1354, 24.7453), pt(42.6977, 23.3219)},
			expectedMeters: 130000,
			tolerance:      5000,
		},
		{
			name:           "1 degree latitude at equator - roughly 111km",
			ls:             orb.LineString{pt(0, 0), pt(1, 0)},
			expectedMeters: 111000,
			tolerance:      1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Length(tt.ls)
			if diff := math.Abs(result - tt.expectedMeters); diff > tt.tolerance {
				t.Errorf("expected ~%.0fm (±%.0f), got %.0fm", tt.expectedMeters, tt.tolerance, result)
			}
		})
	}
}

func pointsEqual(a, b orb.Point, tolerance float64) bool {
	return math.Abs(a.Lat()-b.Lat()) <= tolerance && math.Abs(a.Lon()-b.Lon()) <= tolerance
}

func BenchmarkDecode(b *testing.B) {
	encoded := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(encoded)
	}
}

func BenchmarkEncode(b *testing.B) {
	ls := orb.LineString{pt(38.5, -120.2), pt(40.7, -120.95), pt(43.252, -126.453)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Encode(ls)
	}
}
