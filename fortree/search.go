package fortree

import (
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// Search returns the pointers of every leaf entry matching predicate
// against query, visiting every O-node of each visited P-node and
// incrementing tsc(P) on each traversal so merge-back is eventually
// triggered by access pressure, SPEC_FULL.md §4.6 / spec.md §4.8 Search.
func (t *Tree) Search(query geom.BBox, predicate geom.Predicate) ([]uint32, error) {
	var results []uint32
	rootID := t.info.RootPageID()
	rootHeight := t.info.Height()
	if err := t.searchNode(rootID, rootHeight, query, predicate, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (t *Tree) searchNode(pageID uint32, height int, query geom.BBox, predicate geom.Predicate, out *[]uint32) error {
	n, err := t.store.Get(pageID, height)
	if err != nil {
		return err
	}

	if oe := t.overflow[pageID]; oe != nil && len(oe.pages) > 0 {
		oe.tsc++
	}

	if height == 0 {
		t.matchLeafEntries(n, query, predicate, out)
		if oe := t.overflow[pageID]; oe != nil {
			for _, opID := range oe.pages {
				on, err := t.store.Get(opID, 0)
				if err != nil {
					return err
				}
				t.matchLeafEntries(on, query, predicate, out)
			}
		}
		return nil
	}

	for _, e := range n.Entries {
		if predicate.PrunesSubtree(query, e.BBox) {
			continue
		}
		if err := t.searchNode(e.Pointer, height-1, query, predicate, out); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) matchLeafEntries(n codec.Node, query geom.BBox, predicate geom.Predicate, out *[]uint32) {
	for _, e := range n.Entries {
		if predicate.Eval(query, e.BBox) {
			*out = append(*out, e.Pointer)
		}
	}
}
