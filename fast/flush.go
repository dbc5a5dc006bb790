package fast

import "container/heap"

// FlushPolicy selects which flushing unit Flush picks next, spec.md §4.10
// "Flushing-unit scheduler".
type FlushPolicy int

const (
	FlushAllPolicy FlushPolicy = iota
	RandomPolicy
	FASTPolicy
	FASTStarPolicy
)

// flushUnit is one fixed-size group of page ids sharing a flush decision.
type flushUnit struct {
	pages          []uint32
	totalMods      int
	lastTouchNanos int64
}

// unitHeap is a max-heap over *flushUnit keyed by priority, used by the
// FAST and FAST* policies (spec.md §4.10).
type unitHeap struct {
	policy FlushPolicy
	items  []*flushUnit
	idxOf  map[*flushUnit]int
}

func newUnitHeap(policy FlushPolicy) *unitHeap {
	return &unitHeap{policy: policy, idxOf: make(map[*flushUnit]int)}
}

func (h *unitHeap) priority(u *flushUnit) int64 {
	if h.policy == FASTStarPolicy {
		if u.totalMods == 0 {
			return -1 << 62
		}
		return int64(u.totalMods) - u.lastTouchNanos/1_000_000
	}
	return int64(u.totalMods)
}

func (h *unitHeap) Len() int { return len(h.items) }
func (h *unitHeap) Less(i, j int) bool {
	return h.priority(h.items[i]) > h.priority(h.items[j])
}
func (h *unitHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.idxOf[h.items[i]] = i
	h.idxOf[h.items[j]] = j
}
func (h *unitHeap) Push(x any) {
	u := x.(*flushUnit)
	h.idxOf[u] = len(h.items)
	h.items = append(h.items, u)
}
func (h *unitHeap) Pop() any {
	old := h.items
	n := len(old)
	u := old[n-1]
	h.items = old[:n-1]
	delete(h.idxOf, u)
	return u
}

// touch inserts u into the heap if it isn't already present.
func (h *unitHeap) touch(idx int, u *flushUnit) {
	if _, ok := h.idxOf[u]; !ok {
		heap.Push(h, u)
	}
}

// fix re-establishes heap order after u's priority changed.
func (h *unitHeap) fix(idx int, u *flushUnit) {
	if i, ok := h.idxOf[u]; ok {
		heap.Fix(h, i)
	}
}

// PopBest removes and returns the highest-priority unit, or nil if empty.
func (h *unitHeap) PopBest() *flushUnit {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*flushUnit)
}

// nextXorshift advances the buffer's deterministic PRNG state, used only by
// RandomPolicy (no dependency on math/rand's global lock, no crypto needs).
func (b *Buffer) nextXorshift() uint64 {
	x := b.randState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	b.randState = x
	return x
}

// selectUnit picks the next unit index to flush under the buffer's
// configured policy, or -1 if nothing qualifies.
func (b *Buffer) selectUnit() int {
	switch b.cfg.Policy {
	case FlushAllPolicy:
		for i, u := range b.units {
			if u.totalMods > 0 && len(u.pages) > 0 {
				return i
			}
		}
		return -1
	case RandomPolicy:
		var candidates []int
		for i, u := range b.units {
			if u.totalMods > 0 {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			return -1
		}
		return candidates[b.nextXorshift()%uint64(len(candidates))]
	case FASTPolicy, FASTStarPolicy:
		u := b.heap.PopBest()
		if u == nil {
			return -1
		}
		return b.unitOf[u.pages[0]]
	default:
		return -1
	}
}

