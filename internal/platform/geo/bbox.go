package geo

import "math"

// Box is a latitude/longitude rectangle that contains every point within a
// radius of its center. It is a coarse prefilter only; callers must still
// apply DistanceKM to the candidates.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	// AllLongitudes is set when the box touches a pole or crosses the
	// antimeridian. The longitude bounds must then be ignored.
	AllLongitudes bool
}

// BoundingBox returns the Box around (lat, lng) for radiusKM.
func BoundingBox(lat, lng, radiusKM float64) Box {
	if radiusKM < 0 {
		radiusKM = 0
	}
	angular := radiusKM / EarthRadiusKM
	dLat := toDegrees(angular)

	box := Box{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.AllLongitudes = true
		return box
	}

	// Widest longitude span for this angular radius at this latitude.
	sinRatio := math.Sin(angular) / math.Cos(toRadians(lat))
	if sinRatio >= 1 {
		box.AllLongitudes = true
		return box
	}
	dLng := toDegrees(math.Asin(sinRatio))

	box.MinLng = lng - dLng
	box.MaxLng = lng + dLng
	if box.MinLng < -180 || box.MaxLng > 180 {
		box.AllLongitudes = true
	}
	return box
}

// Contains reports whether the point lies in the box.
func (b Box) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.AllLongitudes {
		return true
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}
