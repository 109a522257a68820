package routing

import "math"

// pqItem is a frontier entry: a stop with the tentative cost and hop count of
// the path that queued it.
type pqItem struct {
	Stop uint32
	Cost float64
	Hops uint32
}

// minHeap is a concrete-typed min-heap for the Dijkstra frontier.
// Avoids interface boxing overhead of container/heap. Ordering is by cost,
// then hops, then stop index, so the pop order is deterministic.
type minHeap struct {
	items []pqItem
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Push(item pqItem) {
	h.items = append(h.items, item)
	h.siftUp(len(h.items) - 1)
}

func (h *minHeap) Pop() pqItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *minHeap) PeekCost() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Cost
}

func (h *minHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	if a.Hops != b.Hops {
		return a.Hops < b.Hops
	}
	return a.Stop < b.Stop
}

func (h *minHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *minHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
