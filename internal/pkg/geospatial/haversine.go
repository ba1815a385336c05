package geospatial

import (
	"math"

	"github.com/stazy/chargeshare/internal/core/domain"
)

const (
	earthRadiusKm = 6371.0

	// KmPerDegree is the rough length of one degree of latitude used for box expansion.
	KmPerDegree = 111.0
)

// DistanceKm calculates the great-circle distance in kilometres between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push a marginally above 1 for antipodal points.
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Distance is DistanceKm over two GeoPoints.
func Distance(a, b domain.GeoPoint) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// PolylineBounds returns the min/max box of the points expanded by radiusKm.
//
// Latitude is padded by radiusKm/KmPerDegree. Longitude degrees shrink towards the
// poles, so the longitude pad is widened by the cosine of the highest latitude in the
// box; any point outside the result is farther than radiusKm from every input point.
// Antimeridian wrap is not handled. The zero Bounds is returned for no points.
func PolylineBounds(points []domain.GeoPoint, radiusKm float64) domain.Bounds {
	if len(points) == 0 {
		return domain.Bounds{}
	}

	b := domain.Bounds{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLon: points[0].Lon, MaxLon: points[0].Lon,
	}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}

	latPad := radiusKm / KmPerDegree
	b.MinLat -= latPad
	b.MaxLat += latPad

	lonPad := lonPadding(math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat)), radiusKm)
	b.MinLon -= lonPad
	b.MaxLon += lonPad
	return b
}

// lonPadding is the longitude span (degrees) covering radiusKm at latitudes up to maxAbsLat.
func lonPadding(maxAbsLat, radiusKm float64) float64 {
	if maxAbsLat >= 90 {
		return 180
	}
	cos := math.Cos(toRad(maxAbsLat))
	ratio := math.Sin(radiusKm/(2*earthRadiusKm)) / cos
	if cos <= 0 || ratio >= 1 {
		return 180
	}
	return 2 * math.Asin(ratio) * 180 / math.Pi
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
