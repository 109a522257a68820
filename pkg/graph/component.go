package graph

// UnionFind implements a disjoint-set data structure with path halving
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// ComponentStats summarizes the weak connectivity of a graph. A fragmented
// feed (many components, isolated stops) is the usual reason a route query
// reports no path.
type ComponentStats struct {
	Components    int
	LargestSize   uint32
	IsolatedStops int // stops in a component of size 1
}

// Components computes weakly-connected-component statistics, treating the
// directed graph as undirected.
func Components(g *Graph) ComponentStats {
	n := g.NumStops()
	if n == 0 {
		return ComponentStats{}
	}

	uf := NewUnionFind(n)
	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}

	stats := ComponentStats{}
	for i := uint32(0); i < n; i++ {
		root := uf.Find(i)
		if root != i {
			continue
		}
		stats.Components++
		if uf.size[root] > stats.LargestSize {
			stats.LargestSize = uf.size[root]
		}
		if uf.size[root] == 1 {
			stats.IsolatedStops++
		}
	}
	return stats
}

// LargestComponent returns the stop indices belonging to the largest weakly
// connected component.
func LargestComponent(g *Graph) []uint32 {
	n := g.NumStops()
	if n == 0 {
		return nil
	}

	uf := NewUnionFind(n)
	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < n; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < n; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}
