// Package rank scores stop centrality by trip-count-weighted power
// iteration. A stop's score estimates how much of the network's traffic
// flows through it; high-scoring hubs are where delays cascade.
package rank

import (
	"log"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"transit_router/pkg/graph"
)

// Options controls the iteration. Zero values fall back to defaults.
type Options struct {
	Damping       float64 // default 0.85
	Epsilon       float64 // L1 convergence threshold, default 1e-6
	MaxIterations int     // default 100
	Parallelism   int     // worker count per iteration, default GOMAXPROCS
}

// DefaultOptions returns the standard iteration parameters.
func DefaultOptions() Options {
	return Options{Damping: 0.85, Epsilon: 1e-6, MaxIterations: 100}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Damping <= 0 || o.Damping >= 1 {
		o.Damping = d.Damping
	}
	if o.Epsilon <= 0 {
		o.Epsilon = d.Epsilon
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	return o
}

// Result is the outcome of a Compute run.
type Result struct {
	Scores     []float64 // len: NumStops, indexed like graph.Stops; sums to ~1
	Iterations int
	Converged  bool
}

// inIndex is a reverse-CSR view: for each stop, its incoming edges with the
// contribution coefficient trips(u->v)/outWeight(u) precomputed.
type inIndex struct {
	first []uint32  // len: n+1
	tail  []uint32  // source stop per in-edge
	coeff []float64 // trips / total out trips of the source
}

func buildInIndex(g *graph.Graph) (inIndex, []bool) {
	n := g.NumStops()

	outWeight := make([]float64, n)
	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			outWeight[u] += float64(g.Trips[e])
		}
	}

	// A stop whose outgoing trips sum to zero propagates nothing; its score
	// mass is redistributed uniformly each iteration.
	dangling := make([]bool, n)
	for u := uint32(0); u < n; u++ {
		dangling[u] = outWeight[u] == 0
	}

	first := make([]uint32, n+1)
	for e := range g.Head {
		first[g.Head[e]+1]++
	}
	for i := uint32(1); i <= n; i++ {
		first[i] += first[i-1]
	}

	tail := make([]uint32, g.NumEdges())
	coeff := make([]float64, g.NumEdges())
	pos := make([]uint32, n)
	copy(pos, first[:n])
	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			idx := pos[v]
			tail[idx] = u
			if outWeight[u] > 0 {
				coeff[idx] = float64(g.Trips[e]) / outWeight[u]
			}
			pos[v]++
		}
	}

	return inIndex{first: first, tail: tail, coeff: coeff}, dangling
}

// Compute runs the power iteration over an immutable graph. It never fails:
// hitting the iteration cap logs a warning and returns the last vector.
//
// Determinism: for a fixed graph and options the returned scores are
// bit-identical across runs. Each iteration reads only the previous vector
// (double-buffered), workers own fixed disjoint stop ranges, and partial
// L1 deltas are reduced in range order.
func Compute(g *graph.Graph, opts Options) Result {
	opts = opts.withDefaults()

	n := int(g.NumStops())
	if n == 0 {
		return Result{Scores: []float64{}, Converged: true}
	}

	in, dangling := buildInIndex(g)

	danglingIdx := make([]uint32, 0)
	for u := 0; u < n; u++ {
		if dangling[u] {
			danglingIdx = append(danglingIdx, uint32(u))
		}
	}

	prev := make([]float64, n)
	next := make([]float64, n)
	for i := range prev {
		prev[i] = 1.0 / float64(n)
	}

	workers := opts.Parallelism
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	d := opts.Damping
	base := (1 - d) / float64(n)
	deltas := make([]float64, workers)

	iterations := 0
	converged := false

	for iterations < opts.MaxIterations {
		iterations++

		// Dangling mass from the previous vector, spread uniformly.
		danglingMass := 0.0
		for _, u := range danglingIdx {
			danglingMass += prev[u]
		}
		uniform := base + d*danglingMass/float64(n)

		var eg errgroup.Group
		for w := 0; w < workers; w++ {
			lo := w * chunk
			hi := min(lo+chunk, n)
			if lo >= hi {
				deltas[w] = 0
				continue
			}
			w := w
			eg.Go(func() error {
				delta := 0.0
				for v := lo; v < hi; v++ {
					s := uniform
					for e := in.first[v]; e < in.first[v+1]; e++ {
						s += d * in.coeff[e] * prev[in.tail[e]]
					}
					next[v] = s
					delta += math.Abs(s - prev[v])
				}
				deltas[w] = delta
				return nil
			})
		}
		eg.Wait() // barrier between iterations

		delta := 0.0
		for _, dv := range deltas {
			delta += dv
		}

		prev, next = next, prev

		if delta < opts.Epsilon {
			converged = true
			break
		}
	}

	if !converged {
		log.Printf("rank: reached %d iterations without converging below %g; using last vector",
			opts.MaxIterations, opts.Epsilon)
	}

	return Result{Scores: prev, Iterations: iterations, Converged: converged}
}
