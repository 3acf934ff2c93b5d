// Package geofence decides whether a coordinate lies inside the campus
// boundary circle.
package geofence

// Point is a WGS 84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Boundary is the allowed area: a circle around a campus center.
// Loaded once from config and read-only at request time.
type Boundary struct {
	Center   Point
	RadiusKm float64
}

// kmPerDegree is the flat conversion between kilometers and degrees of
// latitude. Good enough for campus-scale radii at mid latitudes; not valid
// near the poles or for very large circles.
const kmPerDegree = 111.0

// WithinCampus reports whether p falls inside b, boundary inclusive.
// The check is a circle test in the (lon, lat) plane after converting the
// radius to degrees. A zero radius accepts only the center itself, up to
// floating-point tolerance.
func WithinCampus(p Point, b Boundary) bool {
	r := b.RadiusKm / kmPerDegree
	dx := p.Lon - b.Center.Lon
	dy := p.Lat - b.Center.Lat
	return dx*dx+dy*dy <= r*r
}
