package geo

import (
	"math"
	"testing"
)

func TestDistanceKM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 0, 0, 0, 0, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111.195, 0.01},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111.195, 0.01},
		{"bengaluru neighbours", 12.97, 77.59, 12.98, 77.60, 1.5, 0.1},
		{"antipodal", 0, 0, 0, 180, math.Pi * EarthRadiusKM, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKM(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("DistanceKM() = %f, want %f (±%f)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceKM_Symmetric(t *testing.T) {
	a := DistanceKM(51.5074, -0.1278, 48.8566, 2.3522)
	b := DistanceKM(48.8566, 2.3522, 51.5074, -0.1278)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("expected symmetric distance, got %f and %f", a, b)
	}
}

func TestWithinRadius(t *testing.T) {
	if !WithinRadius(0, 0, 0, 0, 10) {
		t.Error("expected the center to be within 10km")
	}
	if WithinRadius(0, 0, 1, 0, 10) {
		t.Error("expected a point ~111km away to be outside 10km")
	}
	if !WithinRadius(0, 0, 1, 0, 112) {
		t.Error("expected a point ~111km away to be inside 112km")
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := ValidCoordinates(tt.lat, tt.lng); got != tt.want {
			t.Errorf("ValidCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
		}
	}
}
