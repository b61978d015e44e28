package shipping

import "math"

// KMPerDegree converts an equirectangular degree distance to kilometres.
const KMPerDegree = 111.32

// DistanceKM approximates the distance between two points by scaling the
// longitude delta by the cosine of the mean latitude.
func DistanceKM(lat1, lng1, lat2, lng2 float64) float64 {
	meanLat := (lat1 + lat2) / 2 * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (lng2 - lng1) * math.Cos(meanLat)
	return math.Sqrt(dLat*dLat+dLng*dLng) * KMPerDegree
}

// WithinRadius reports whether a point is inside the circle, inclusive.
func WithinRadius(centerLat, centerLng, radiusKM, lat, lng float64) (bool, float64) {
	d := DistanceKM(centerLat, centerLng, lat, lng)
	return d <= radiusKM, d
}
