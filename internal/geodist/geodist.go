// Package geodist computes great-circle distances between WGS84 coordinates.
package geodist

import (
	"math"

	"github.com/twpayne/go-geom"
)

const earthRadiusMiles = 3958.7613

// Miles returns the haversine distance in miles between two coordinates in
// (lng, lat) order, matching go-geom's x/y convention.
func Miles(a, b geom.Coord) float64 {
	lat1 := a.Y() * math.Pi / 180
	lat2 := b.Y() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.X() - a.X()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}
