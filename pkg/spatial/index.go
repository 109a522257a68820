// Package spatial resolves map coordinates to stops, so the dashboard
// boundary can translate clicks into stop ids.
package spatial

import (
	"sort"

	"github.com/tidwall/rtree"

	"transit_router/pkg/geo"
	"transit_router/pkg/graph"
)

// Index is an R-tree over stop coordinates. Built once per graph; read-only
// afterwards, safe for concurrent lookups.
type Index struct {
	tr rtree.RTreeG[uint32]
	g  *graph.Graph
}

// Match is a stop returned by a proximity lookup.
type Match struct {
	Stop       graph.Stop
	DistMeters float64
}

// NewIndex builds the spatial index for a graph's stops.
func NewIndex(g *graph.Graph) *Index {
	ix := &Index{g: g}
	for i, s := range g.Stops {
		p := [2]float64{s.Lon, s.Lat}
		ix.tr.Insert(p, p, uint32(i))
	}
	return ix
}

// Len returns the number of indexed stops.
func (ix *Index) Len() int { return ix.tr.Len() }

// Within returns the stops within radiusMeters of the given point, nearest
// first (ties broken by stop id).
func (ix *Index) Within(lat, lon, radiusMeters float64) []Match {
	dLat, dLon := geo.DegreePadding(lat, radiusMeters)
	min := [2]float64{lon - dLon, lat - dLat}
	max := [2]float64{lon + dLon, lat + dLat}

	var matches []Match
	ix.tr.Search(min, max, func(_, _ [2]float64, idx uint32) bool {
		s := ix.g.Stops[idx]
		// The box search over-selects at the corners; refine with the exact
		// great-circle distance.
		d := geo.Haversine(lat, lon, s.Lat, s.Lon)
		if d <= radiusMeters {
			matches = append(matches, Match{Stop: s, DistMeters: d})
		}
		return true
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistMeters != matches[j].DistMeters {
			return matches[i].DistMeters < matches[j].DistMeters
		}
		return matches[i].Stop.ID < matches[j].Stop.ID
	})
	return matches
}

// Nearest returns the stop closest to the given point. It searches expanding
// radii before falling back to a full scan, so it works on sparse networks.
func (ix *Index) Nearest(lat, lon float64) (Match, bool) {
	if ix.tr.Len() == 0 {
		return Match{}, false
	}

	for _, radius := range []float64{500, 5_000, 50_000, 500_000} {
		if m := ix.Within(lat, lon, radius); len(m) > 0 {
			return m[0], true
		}
	}

	// Sparse network: scan everything.
	best := Match{DistMeters: -1}
	for _, s := range ix.g.Stops {
		d := geo.Haversine(lat, lon, s.Lat, s.Lon)
		if best.DistMeters < 0 || d < best.DistMeters ||
			(d == best.DistMeters && s.ID < best.Stop.ID) {
			best = Match{Stop: s, DistMeters: d}
		}
	}
	return best, true
}
