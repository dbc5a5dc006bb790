package rtree

import (
	"math"
	"sort"

	"github.com/intellect4all/geoindex/codec"
)

// forcedReinsert implements the R*-tree forced-reinsert overflow handler,
// spec.md §4.7: remove the farthest reinsertPerc of entries (by center
// distance to the node's own bbox center), write the remainder back,
// tighten ancestor bboxes without growing the tree, then reinsert the
// removed entries far-first at their original height.
func (t *Tree) forcedReinsert(path []stackFrame, overflowNode codec.Node, recordedHeight int) error {
	target := path[len(path)-1]
	center := overflowNode.BBox().Center()

	sorted := append([]codec.Entry(nil), overflowNode.Entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return distanceToPoint(sorted[i].BBox.Center(), center) > distanceToPoint(sorted[j].BBox.Center(), center)
	})

	perc := t.cfg.ReinsertPercInt
	if target.height == 0 {
		perc = t.cfg.ReinsertPercLeaf
	}
	if perc <= 0 {
		perc = 0.3
	}
	k := int(math.Round(perc * float64(len(sorted))))
	if k < 1 {
		k = 1
	}
	if k >= len(sorted) {
		k = len(sorted) - 1
	}

	removed := sorted[:k]
	kept := overflowNode.Clone()
	kept.Entries = sorted[k:]

	old := target.node
	if err := t.store.PutDirty(target.pageID, old, kept, target.height); err != nil {
		return err
	}
	path[len(path)-1].node = kept
	if err := t.adjustTree(path, nil, recordedHeight); err != nil {
		return err
	}

	for _, e := range removed {
		if err := t.insertAtHeight(e, target.height); err != nil {
			return err
		}
	}
	return nil
}

func distanceToPoint(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
