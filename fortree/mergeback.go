package fortree

import "github.com/intellect4all/geoindex/codec"

// mergeBack rewrites the entries of a primary node and its whole overflow
// chain into a fresh primary followed by the minimum number of O-nodes
// needed to hold the rest, reusing existing O-node page ids before
// allocating new ones and freeing any surplus, SPEC_FULL.md §4.6 /
// spec.md §4.8 AddElement's MergeBack step. The overflow-table entry for
// pageID is cleared: the flattened O-nodes are returned so the caller can
// promote them into ordinary sibling entries in the parent.
func (t *Tree) mergeBack(pageID uint32, height int) (codec.Node, []codec.Entry, error) {
	primary, err := t.store.Get(pageID, height)
	if err != nil {
		return codec.Node{}, nil, err
	}

	var allEntries []codec.Entry
	allEntries = append(allEntries, primary.Entries...)

	var oldPages []uint32
	if oe := t.overflow[pageID]; oe != nil {
		oldPages = oe.pages
		for _, opID := range oldPages {
			on, err := t.store.Get(opID, height)
			if err != nil {
				return codec.Node{}, nil, err
			}
			allEntries = append(allEntries, on.Entries...)
		}
	}

	max := t.cfg.maxFor(height)
	totalPages := 1
	if max > 0 {
		totalPages = (len(allEntries) + max - 1) / max
	}
	if totalPages < 1 {
		totalPages = 1
	}

	groups := make([][]codec.Entry, totalPages)
	idx := 0
	for gi := 0; gi < totalPages; gi++ {
		remainingGroups := totalPages - gi
		remainingEntries := len(allEntries) - idx
		take := remainingEntries / remainingGroups
		if take > max {
			take = max
		}
		if take == 0 && remainingEntries > 0 {
			take = 1
		}
		groups[gi] = allEntries[idx : idx+take]
		idx += take
	}

	newPrimary := primary.Clone()
	newPrimary.Entries = append([]codec.Entry(nil), groups[0]...)
	if err := t.store.PutDirty(pageID, primary, newPrimary, height); err != nil {
		return codec.Node{}, nil, err
	}

	var promoted []codec.Entry
	numONeeded := totalPages - 1
	for gi := 1; gi <= numONeeded; gi++ {
		entries := append([]codec.Entry(nil), groups[gi]...)
		var pid uint32
		if gi-1 < len(oldPages) {
			pid = oldPages[gi-1]
			old, err := t.store.Get(pid, height)
			if err != nil {
				return codec.Node{}, nil, err
			}
			node := codec.Node{Kind: primary.Kind, Height: height, Entries: entries}
			if err := t.store.PutDirty(pid, old, node, height); err != nil {
				return codec.Node{}, nil, err
			}
			promoted = append(promoted, codec.Entry{Pointer: pid, BBox: node.BBox()})
		} else {
			pid = t.allocatePage()
			node := codec.Node{Kind: primary.Kind, Height: height, Entries: entries}
			if err := t.store.PutNew(pid, node, height); err != nil {
				return codec.Node{}, nil, err
			}
			promoted = append(promoted, codec.Entry{Pointer: pid, BBox: node.BBox()})
		}
	}

	for gi := numONeeded; gi < len(oldPages); gi++ {
		if err := t.store.Delete(oldPages[gi], height); err != nil {
			return codec.Node{}, nil, err
		}
		t.freePage(oldPages[gi])
	}

	delete(t.overflow, pageID)
	return newPrimary, promoted, nil
}
