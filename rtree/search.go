package rtree

import "github.com/intellect4all/geoindex/geom"

// Search returns the pointers of every leaf entry matching predicate
// against query, spec.md §4.12 search. Internal subtrees are pruned via
// geom.Predicate.PrunesSubtree.
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
	if height == 0 {
		for _, e := range n.Entries {
			if predicate.Eval(query, e.BBox) {
				*out = append(*out, e.Pointer)
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
