// Package geo resolves a viewer's position and orders events by distance.
package geo

import (
	"cmp"
	"math"
	"slices"
)

const earthRadiusKm = 6371.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is usable for ranking. Out-of-range values and the
// (0,0) placeholder many clients send for "unknown" are rejected.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return false
	}
	return c.Lat != 0 || c.Lng != 0
}

// FromPointers builds a coordinate from optional columns.
func FromPointers(lat, lng *float64) (Coordinate, bool) {
	if lat == nil || lng == nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: *lat, Lng: *lng}
	return c, c.Valid()
}

// Distance returns the great-circle distance between a and b in kilometers
// using the haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Ranked pairs an item with its derived distance from the viewer.
// DistanceKm is +Inf when the item could not be located.
type Ranked[T any] struct {
	Item       T
	DistanceKm float64
}

// Known reports whether the item had a usable position.
func (r Ranked[T]) Known() bool { return !math.IsInf(r.DistanceKm, 1) }

// Rank orders items by ascending distance from viewer. locate returns the
// item's position or false when it has none. The sort is stable, so items
// with equal or unknown distance keep their input order.
func Rank[T any](viewer Coordinate, items []T, locate func(T) (Coordinate, bool)) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, it := range items {
		d := math.Inf(1)
		if c, ok := locate(it); ok && viewer.Valid() {
			d = Distance(viewer, c)
		}
		out[i] = Ranked[T]{Item: it, DistanceKm: d}
	}

	slices.SortStableFunc(out, func(a, b Ranked[T]) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return out
}
