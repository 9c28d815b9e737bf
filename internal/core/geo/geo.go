// Package geo provides the small geographic primitives shared by the
// zone loaders, the request builder and the graph preparation tooling:
// lat/lon points, bounding boxes and great-circle distance
package geo

import (
	"math"

	perr "otp4gb/internal/platform/errors"
)

// Point is a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Bounds is a lat/lon bounding box, field names matching the
// bounds.yml entries
type Bounds struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Valid reports whether the box has positive extent in both axes
func (b Bounds) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLon < b.MaxLon
}

// Check returns a coded error for an unusable box
func (b Bounds) Check() error {
	if !b.Valid() {
		return perr.Validationf(
			"extents must satisfy min_lat < max_lat and min_lon < max_lon, got %+v", b)
	}
	return nil
}

// Contains reports whether p lies inside the box, edges inclusive
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// earthRadiusKm is the mean earth radius used for crow-fly distances
const earthRadiusKm = 6371.0

// CrowFlyKm returns the great-circle distance between two points in
// kilometres (haversine)
func CrowFlyKm(a, b Point) float64 {
	la1 := a.Lat * math.Pi / 180
	la2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(s))
}
