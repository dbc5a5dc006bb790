package rtree

import (
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// hilbertValueOf computes the largest-hilbert-value bookkeeping key for a
// leaf-level bbox, per spec.md §3 "Hilbert nodes ... lhv (largest hilbert
// value)". Only meaningful when cfg.Kind == codec.HilbertTree.
func (t *Tree) hilbertValueOf(b geom.BBox) uint64 {
	qx, qy := geom.QuantizeCenter(b, t.cfg.SpaceMin, t.cfg.SpaceMax, t.cfg.HilbertOrder)
	return geom.HilbertValue(qx, qy, t.cfg.HilbertOrder)
}

// maxLHVOf returns the largest hilbert value reachable under n: the node's
// own entries' stored lhv for an internal node, or the computed value of
// each leaf entry's center for a leaf.
func (t *Tree) maxLHVOf(n codec.Node, height int) uint64 {
	var max uint64
	for _, e := range n.Entries {
		v := e.LHV
		if height == 0 {
			v = t.hilbertValueOf(e.BBox)
		}
		if v > max {
			max = v
		}
	}
	return max
}

// chooseBestChildHilbert picks the first child whose lhv is >= the
// inserted entry's lhv, or the last child if none qualifies, per the
// classic Hilbert R-tree ChooseLeaf rule.
func chooseBestChildHilbert(n codec.Node, lhv uint64) int {
	for i, e := range n.Entries {
		if e.LHV >= lhv {
			return i
		}
	}
	return len(n.Entries) - 1
}

// insertSortedByHilbert inserts entry into a leaf's entries at the position
// that keeps them ordered by ascending (computed) hilbert value.
func (t *Tree) insertSortedByHilbert(entries []codec.Entry, entry codec.Entry) []codec.Entry {
	v := t.hilbertValueOf(entry.BBox)
	pos := len(entries)
	for i, e := range entries {
		if t.hilbertValueOf(e.BBox) >= v {
			pos = i
			break
		}
	}
	out := make([]codec.Entry, 0, len(entries)+1)
	out = append(out, entries[:pos]...)
	out = append(out, entry)
	out = append(out, entries[pos:]...)
	return out
}
