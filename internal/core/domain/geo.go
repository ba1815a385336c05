package domain

// GeoPoint represents a geographic coordinate (WGS 84), always latitude first.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the coordinate lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// LatLonPairs converts points to the [[lat,lon],...] wire format.
func LatLonPairs(points []GeoPoint) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p.Lat, p.Lon}
	}
	return out
}

// PointsFromLatLon converts [[lat,lon],...] pairs into points.
func PointsFromLatLon(pairs [][2]float64) []GeoPoint {
	out := make([]GeoPoint, len(pairs))
	for i, p := range pairs {
		out[i] = GeoPoint{Lat: p[0], Lon: p[1]}
	}
	return out
}
