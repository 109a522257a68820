package routing

import (
	"fmt"
	"sort"

	"transit_router/pkg/snapshot"
)

// Hub is a high-risk stop found in the hop neighborhood of a query stop.
type Hub struct {
	StopID string
	Risk   float64
	Hops   int
}

// HubsWithin returns the stops reachable from src in at most maxHops edges
// whose risk score is at least minRisk, src itself excluded. Results are
// ordered by risk descending, then id, so repeated calls agree.
func HubsWithin(snap *snapshot.Snapshot, src string, maxHops int, minRisk float64) ([]Hub, error) {
	g := snap.Graph
	if uint32(len(snap.Risk)) != g.NumStops() {
		return nil, fmt.Errorf("risk vector len %d for %d stops: %w", len(snap.Risk), g.NumStops(), ErrCorruptSnapshot)
	}
	origin, ok := g.IndexOf(src)
	if !ok {
		return nil, fmt.Errorf("stop %q: %w", src, ErrUnknownStop)
	}

	visited := map[uint32]int{origin: 0}
	queue := []uint32{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		depth := visited[current]
		if depth >= maxHops {
			continue
		}
		start, end := g.EdgesFrom(current)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if _, seen := visited[v]; !seen {
				visited[v] = depth + 1
				queue = append(queue, v)
			}
		}
	}

	hubs := make([]Hub, 0)
	for idx, depth := range visited {
		if idx == origin {
			continue
		}
		if snap.Risk[idx] >= minRisk {
			hubs = append(hubs, Hub{StopID: g.Stops[idx].ID, Risk: snap.Risk[idx], Hops: depth})
		}
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Risk != hubs[j].Risk {
			return hubs[i].Risk > hubs[j].Risk
		}
		return hubs[i].StopID < hubs[j].StopID
	})
	return hubs, nil
}
