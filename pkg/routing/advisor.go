package routing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/semaphore"

	"transit_router/pkg/graph"
	"transit_router/pkg/snapshot"
)

// ErrNoRoute is returned when no path exists between two stops that are both
// present in the snapshot.
var ErrNoRoute = errors.New("no route found")

// ErrUnknownStop is returned when a queried stop id is not in the snapshot.
var ErrUnknownStop = errors.New("unknown stop")

// ErrBadAlpha is returned when the time/robustness trade-off parameter is
// outside [0,1].
var ErrBadAlpha = errors.New("alpha must be in [0,1]")

// ErrCorruptSnapshot indicates a snapshot invariant violation (an edge
// pointing outside its own graph, or a risk vector of the wrong length).
// It can only be produced by a construction defect, never by bad input.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

const noStop = ^uint32(0)

// costEps is the tolerance under which two blended path costs count as equal
// and the hop/lexicographic tie-break applies.
const costEps = 1e-9

// Request is a single route query.
type Request struct {
	Src   string
	Dst   string
	Alpha float64 // 1 = pure speed, 0 = pure robustness

	// WithReferences additionally computes the alpha=1 and alpha=0 routes
	// so callers can present the trade-off explicitly.
	WithReferences bool
}

// Route is an advised path through the network. Computed per query, never
// persisted.
type Route struct {
	Stops        []string // ordered stop ids, endpoints = requested src/dst
	TotalTimeSec float64
	RiskSum      float64 // cumulative risk of stops after the source
	Alpha        float64
}

// Hops returns the number of edges traversed.
func (r *Route) Hops() int { return len(r.Stops) - 1 }

// Result bundles the advised route with its optional reference routes.
type Result struct {
	Route   *Route
	Fastest *Route // alpha = 1, only when requested
	Safest  *Route // alpha = 0, only when requested
}

// Advisor answers route queries against published snapshots. Queries are
// bounded by a weighted semaphore: excess queries wait for a slot rather
// than being rejected, giving up only when their deadline expires.
type Advisor struct {
	sem *semaphore.Weighted
}

// NewAdvisor creates an advisor allowing at most maxConcurrent queries to
// execute at once. maxConcurrent <= 0 means unbounded.
func NewAdvisor(maxConcurrent int) *Advisor {
	a := &Advisor{}
	if maxConcurrent > 0 {
		a.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return a
}

// Query computes the minimum-blended-cost route from Src to Dst. It is a
// pure function of (snapshot, request): it never mutates the snapshot, and
// repeated calls return identical stop sequences.
func (a *Advisor) Query(ctx context.Context, snap *snapshot.Snapshot, req Request) (*Result, error) {
	if math.IsNaN(req.Alpha) || req.Alpha < 0 || req.Alpha > 1 {
		return nil, fmt.Errorf("alpha %v: %w", req.Alpha, ErrBadAlpha)
	}

	g := snap.Graph
	if uint32(len(snap.Risk)) != g.NumStops() {
		return nil, fmt.Errorf("risk vector len %d for %d stops: %w", len(snap.Risk), g.NumStops(), ErrCorruptSnapshot)
	}

	src, ok := g.IndexOf(req.Src)
	if !ok {
		return nil, fmt.Errorf("stop %q: %w", req.Src, ErrUnknownStop)
	}
	dst, ok := g.IndexOf(req.Dst)
	if !ok {
		return nil, fmt.Errorf("stop %q: %w", req.Dst, ErrUnknownStop)
	}

	// Trivial route: no search, no semaphore slot.
	if src == dst {
		res := &Result{Route: trivialRoute(req.Src, req.Alpha)}
		if req.WithReferences {
			res.Fastest = trivialRoute(req.Src, 1)
			res.Safest = trivialRoute(req.Src, 0)
		}
		return res, nil
	}

	if a.sem != nil {
		if err := a.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer a.sem.Release(1)
	}

	route, err := findPath(ctx, snap, src, dst, req.Alpha)
	if err != nil {
		return nil, err
	}
	res := &Result{Route: route}

	if req.WithReferences {
		if res.Fastest, err = findPath(ctx, snap, src, dst, 1); err != nil {
			return nil, err
		}
		if res.Safest, err = findPath(ctx, snap, src, dst, 0); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func trivialRoute(id string, alpha float64) *Route {
	return &Route{Stops: []string{id}, Alpha: alpha}
}

// findPath runs Dijkstra over the CSR adjacency with the blended edge cost
//
//	cost(u->v) = alpha * time(u,v)/maxTime + (1-alpha) * risk(v)
//
// Both terms are non-negative, which the frontier search requires. Ties in
// total cost resolve to fewer hops, then to the lexicographically smaller
// stop-id sequence, so any (snapshot, query) pair has a single answer.
// The deadline is checked at every expansion.
func findPath(ctx context.Context, snap *snapshot.Snapshot, src, dst uint32, alpha float64) (*Route, error) {
	g := snap.Graph
	n := g.NumStops()

	invMaxTime := 0.0
	if g.MaxTimeSec > 0 {
		invMaxTime = 1 / g.MaxTimeSec
	}

	dist := make([]float64, n)
	hops := make([]uint32, n)
	pred := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noStop
	}
	dist[src] = 0

	var h minHeap
	h.Push(pqItem{Stop: src, Cost: 0, Hops: 0})

	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Once dst is settled, only equal-cost entries can still refine its
		// hop/lexicographic tie-break.
		if !math.IsInf(dist[dst], 1) && h.PeekCost() > dist[dst]+costEps {
			break
		}

		item := h.Pop()
		u := item.Stop
		if item.Cost > dist[u]+costEps {
			continue // stale entry
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if v >= n {
				return nil, fmt.Errorf("edge %d head %d outside graph: %w", e, v, ErrCorruptSnapshot)
			}
			edgeCost := alpha*g.TimeSec[e]*invMaxTime + (1-alpha)*snap.Risk[v]
			nc := dist[u] + edgeCost
			nh := hops[u] + 1

			improved := false
			switch {
			case nc < dist[v]-costEps:
				dist[v] = nc
				improved = true
			case nc <= dist[v]+costEps:
				if nh < hops[v] || (nh == hops[v] && lexLess(g, pred, u, pred[v])) {
					if nc < dist[v] {
						dist[v] = nc
					}
					improved = true
				}
			}
			if improved {
				hops[v] = nh
				pred[v] = u
				h.Push(pqItem{Stop: v, Cost: dist[v], Hops: nh})
			}
		}
	}

	if math.IsInf(dist[dst], 1) {
		return nil, fmt.Errorf("%s -> %s: %w", g.Stops[src].ID, g.Stops[dst].ID, ErrNoRoute)
	}

	path := pathIndices(pred, dst)
	route := &Route{
		Stops: make([]string, len(path)),
		Alpha: alpha,
	}
	for i, idx := range path {
		route.Stops[i] = g.Stops[idx].ID
	}
	for i := 0; i+1 < len(path); i++ {
		e, ok := g.EdgeBetween(path[i], path[i+1])
		if !ok {
			return nil, fmt.Errorf("path step %s -> %s has no edge: %w",
				g.Stops[path[i]].ID, g.Stops[path[i+1]].ID, ErrCorruptSnapshot)
		}
		route.TotalTimeSec += g.TimeSec[e]
		route.RiskSum += snap.Risk[path[i+1]]
	}
	return route, nil
}

// pathIndices reconstructs the stop index sequence ending at node by walking
// predecessors back to the source.
func pathIndices(pred []uint32, node uint32) []uint32 {
	var rev []uint32
	for cur := node; cur != noStop; cur = pred[cur] {
		rev = append(rev, cur)
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// lexLess reports whether the current best path to a is lexicographically
// smaller (by stop id sequence) than the current best path to b. Only called
// on exact cost-and-hop ties, where both paths have equal length.
func lexLess(g *graph.Graph, pred []uint32, a, b uint32) bool {
	if b == noStop {
		return false
	}
	pa := pathIndices(pred, a)
	pb := pathIndices(pred, b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		ida, idb := g.Stops[pa[i]].ID, g.Stops[pb[i]].ID
		if ida != idb {
			return ida < idb
		}
	}
	return len(pa) < len(pb)
}
