package geo

import "math"

// EarthRadiusKM is the mean Earth radius used by every distance computation in
// the service. Changing it silently changes matching radius semantics.
const EarthRadiusKM = 6371.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DistanceKM returns the great-circle distance between two coordinates using
// the haversine formula.
func DistanceKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Pow(math.Sin(dLng/2), 2)

	return EarthRadiusKM * 2 * math.Asin(math.Sqrt(a))
}

// WithinRadius reports whether point lies within radiusKM of center.
func WithinRadius(centerLat, centerLng, pointLat, pointLng, radiusKM float64) bool {
	return DistanceKM(centerLat, centerLng, pointLat, pointLng) <= radiusKM
}

// ValidCoordinates reports whether lat/lng are finite and inside the WGS84 range.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
