package graph

// Stop is a transit stop. Immutable once part of a built Graph.
type Stop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// Graph represents the directed transit network in CSR (Compressed Sparse
// Row) format. Stops are index-ordered by sorted id so that two builds from
// the same records produce identical layouts.
type Graph struct {
	Stops    []Stop    // len: NumStops; index-ordered
	FirstOut []uint32  // len: NumStops + 1; FirstOut[i]..FirstOut[i+1] are edges from stop i
	Head     []uint32  // len: NumEdges; target stop index for each edge
	TimeSec  []float64 // len: NumEdges; aggregated travel time in seconds
	Trips    []uint32  // len: NumEdges; aggregated trip count (frequency weight)

	// MaxTimeSec is the largest aggregated edge travel time, used to
	// normalize times into [0,1] during route cost blending.
	MaxTimeSec float64

	index map[string]uint32 // stop id -> index
}

// NumStops returns the number of stops in the graph.
func (g *Graph) NumStops() uint32 { return uint32(len(g.Stops)) }

// NumEdges returns the number of aggregated directed edges.
func (g *Graph) NumEdges() uint32 { return uint32(len(g.Head)) }

// IndexOf resolves a stop id to its dense index.
func (g *Graph) IndexOf(id string) (uint32, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// EdgesFrom returns the range of edge indices for edges originating from stop u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// EdgeBetween returns the edge index for u->v, or false if no such edge exists.
func (g *Graph) EdgeBetween(u, v uint32) (uint32, bool) {
	start, end := g.EdgesFrom(u)
	for e := start; e < end; e++ {
		if g.Head[e] == v {
			return e, true
		}
	}
	return 0, false
}

// StopRecords re-extracts the stop set as input records.
func (g *Graph) StopRecords() []StopRecord {
	out := make([]StopRecord, len(g.Stops))
	for i, s := range g.Stops {
		out[i] = StopRecord{ID: s.ID, Name: s.Name, Lat: s.Lat, Lon: s.Lon}
	}
	return out
}

// EdgeRecords re-extracts the aggregated edges as input records. Rebuilding a
// graph from StopRecords()+EdgeRecords() yields a structurally identical graph.
func (g *Graph) EdgeRecords() []EdgeRecord {
	out := make([]EdgeRecord, 0, len(g.Head))
	for u := uint32(0); u < g.NumStops(); u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			out = append(out, EdgeRecord{
				From:          g.Stops[u].ID,
				To:            g.Stops[g.Head[e]].ID,
				TravelTimeSec: g.TimeSec[e],
				Trips:         g.Trips[e],
			})
		}
	}
	return out
}
