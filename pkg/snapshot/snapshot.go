// Package snapshot owns the publication lifecycle of the network: an
// immutable (graph, risk scores, generation) tuple swapped atomically under
// a single-writer discipline while queries read lock-free.
package snapshot

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"transit_router/pkg/graph"
	"transit_router/pkg/rank"
)

// ErrNoSnapshot is returned when an operation needs a published snapshot and
// none exists yet.
var ErrNoSnapshot = errors.New("no snapshot published")

// Snapshot is the immutable unit of publication. Queries hold a reference
// for their full duration; a concurrent publish cannot invalidate them.
type Snapshot struct {
	Graph      *graph.Graph
	Risk       []float64 // len: Graph.NumStops(), indexed like Graph.Stops
	Generation uint64
}

// RiskOf resolves a stop id to its risk score.
func (s *Snapshot) RiskOf(id string) (float64, bool) {
	idx, ok := s.Graph.IndexOf(id)
	if !ok {
		return 0, false
	}
	return s.Risk[idx], true
}

// Publisher builds and publishes snapshots. At most one build or recompute
// runs at a time; readers are never blocked.
type Publisher struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Snapshot]
	gen atomic.Uint64
}

// NewPublisher creates a Publisher with no snapshot published.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Current returns the published snapshot, or nil before the first Build.
func (p *Publisher) Current() *Snapshot {
	return p.cur.Load()
}

// Build constructs a graph from raw records, scores it, and publishes the
// result as a new generation. On failure the previously published snapshot
// keeps serving queries unchanged.
func (p *Publisher) Build(stops []graph.StopRecord, edges []graph.EdgeRecord, opts rank.Options) (*Snapshot, graph.BuildReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, report, err := graph.Build(stops, edges)
	if err != nil {
		return nil, report, err
	}
	res := rank.Compute(g, opts)

	snap := p.publish(g, res.Scores)
	log.Printf("snapshot: published generation %d (%d stops, %d edges, rank %d iteration(s))",
		snap.Generation, g.NumStops(), g.NumEdges(), res.Iterations)
	return snap, report, nil
}

// RecomputeRisk publishes a new snapshot sharing the current graph with
// freshly computed scores.
func (p *Publisher) RecomputeRisk(opts rank.Options) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.cur.Load()
	if cur == nil {
		return nil, ErrNoSnapshot
	}
	res := rank.Compute(cur.Graph, opts)

	snap := p.publish(cur.Graph, res.Scores)
	log.Printf("snapshot: recomputed risk, generation %d (rank %d iteration(s))",
		snap.Generation, res.Iterations)
	return snap, nil
}

// publish swaps in a new snapshot. Caller holds p.mu.
func (p *Publisher) publish(g *graph.Graph, risk []float64) *Snapshot {
	snap := &Snapshot{
		Graph:      g,
		Risk:       risk,
		Generation: p.gen.Add(1),
	}
	p.cur.Store(snap)
	return snap
}
