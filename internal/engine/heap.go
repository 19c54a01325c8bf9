package engine

import (
	"container/heap"

	"github.com/accelsim/tilenoc/internal/simevent"
)

// eventHeap orders pending events by (time, priority, seq) — container/heap
// does not guarantee FIFO stability among equal keys on its own, so seq
// (stamped at Schedule time) is the explicit third key that reproduces the
// reference engine's implicit insertion-order tiebreak.
type eventHeap []*simevent.Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*simevent.Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*eventHeap)(nil)
