package geo

import (
	"math"
	"sort"
)

// EarthRadiusM is the WGS84 mean earth radius in meters.
const EarthRadiusM = 6371008.8

type Point struct {
	Lat float64
	Lng float64
}

func ValidLat(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

func ValidLng(lng float64) bool {
	return !math.IsNaN(lng) && lng >= -180 && lng <= 180
}

func ValidPoint(p Point) bool {
	return ValidLat(p.Lat) && ValidLng(p.Lng)
}

// Distance returns the great-circle distance between two points in meters,
// using the Haversine formula.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng

	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Located is anything that can report an optional coordinate.
type Located interface {
	Location() (Point, bool)
}

// SortNearest orders items nearest-first from origin. Items without a
// coordinate sort after all located items, keeping their relative order.
// Returns the distance in meters for each item, aligned by index with the
// sorted slice; entries without a coordinate get a negative distance.
func SortNearest[T Located](origin Point, items []T) []float64 {
	type keyed struct {
		item T
		dist float64
		ok   bool
	}

	ks := make([]keyed, len(items))
	for i, it := range items {
		p, ok := it.Location()
		k := keyed{item: it, ok: ok, dist: -1}
		if ok {
			k.dist = Distance(origin, p)
		}
		ks[i] = k
	}

	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		if !ks[i].ok {
			return false
		}
		return ks[i].dist < ks[j].dist
	})

	dists := make([]float64, len(ks))
	for i, k := range ks {
		items[i] = k.item
		dists[i] = k.dist
	}
	return dists
}
