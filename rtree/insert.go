package rtree

import (
	"math"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// Insert adds a new external object at the leaf level, spec.md §4.5.
func (t *Tree) Insert(pointer uint32, bbox geom.BBox) error {
	t.reinsertedAtLevel = make(map[int]bool)
	return t.insertAtHeight(codec.Entry{Pointer: pointer, BBox: bbox}, 0)
}

// insertAtHeight drives one insertion of entry at the given target height,
// used both for fresh leaf inserts (height 0) and for entries propagated up
// after a child split, or reinserted during condense/forced-reinsert
// (their original recorded height).
func (t *Tree) insertAtHeight(entry codec.Entry, targetHeight int) error {
	path, err := t.chooseSubtree(entry.BBox, targetHeight)
	if err != nil {
		return err
	}
	return t.insertIntoPath(path, entry, targetHeight)
}

// chooseSubtree descends from the root picking, at each level, the child
// needing least enlargement to include bbox (ties: smallest area), stopping
// at the node sitting at targetHeight. The returned path runs root-first.
func (t *Tree) chooseSubtree(bbox geom.BBox, targetHeight int) ([]stackFrame, error) {
	rootID := t.info.RootPageID()
	rootHeight := t.info.Height()
	root, err := t.store.Get(rootID, rootHeight)
	if err != nil {
		return nil, err
	}
	path := []stackFrame{{pageID: rootID, height: rootHeight, node: root, entryIdx: -1}}

	isHilbert := t.cfg.Kind == codec.HilbertTree
	var lhv uint64
	if isHilbert {
		lhv = t.hilbertValueOf(bbox)
	}

	for path[len(path)-1].height > targetHeight {
		cur := path[len(path)-1]
		var best int
		if isHilbert {
			best = chooseBestChildHilbert(cur.node, lhv)
		} else {
			best = chooseBestChild(cur.node, bbox)
		}
		if best < 0 {
			return nil, ErrInvariant
		}
		childID := cur.node.Entries[best].Pointer
		childHeight := cur.height - 1
		child, err := t.store.Get(childID, childHeight)
		if err != nil {
			return nil, err
		}
		path = append(path, stackFrame{pageID: childID, height: childHeight, node: child, entryIdx: best})
	}
	return path, nil
}

// chooseBestChild picks the entry index needing the least enlargement to
// include bbox, breaking ties by smallest resulting area.
func chooseBestChild(n codec.Node, bbox geom.BBox) int {
	best := -1
	bestEnl := math.Inf(1)
	bestArea := math.Inf(1)
	for i, e := range n.Entries {
		enl := e.BBox.EnlargementArea(bbox)
		area := e.BBox.Area()
		if enl < bestEnl || (enl == bestEnl && area < bestArea) {
			best, bestEnl, bestArea = i, enl, area
		}
	}
	return best
}

// insertIntoPath adds entry to the node at the bottom of path. If it still
// fits, the node is rewritten and AdjustTree climbs without propagating a
// new sibling. Otherwise the node overflows: an R*-tree may forced-reinsert
// instead of splitting (first overflow at this level, per insert call);
// otherwise Split runs and the new sibling propagates up the path,
// potentially causing further splits and, at the root, a height increase.
func (t *Tree) insertIntoPath(path []stackFrame, entry codec.Entry, recordedHeight int) error {
	leafIdx := len(path) - 1
	target := path[leafIdx]
	old := target.node
	newNode := old.Clone()
	if t.cfg.Kind == codec.HilbertTree && target.height == 0 {
		newNode.Entries = t.insertSortedByHilbert(newNode.Entries, entry)
	} else {
		newNode.Entries = append(newNode.Entries, entry)
	}

	if len(newNode.Entries) <= t.cfg.maxFor(target.height) {
		if err := t.store.PutDirty(target.pageID, old, newNode, target.height); err != nil {
			return err
		}
		path[leafIdx].node = newNode
		return t.adjustTree(path, nil, recordedHeight)
	}

	if t.cfg.Kind == codec.RStarTree && leafIdx > 0 && !t.reinsertedAtLevel[target.height] {
		t.reinsertedAtLevel[target.height] = true
		return t.forcedReinsert(path, newNode, recordedHeight)
	}

	parentBBox := geom.BBox{}
	if leafIdx > 0 {
		parentBBox = path[leafIdx-1].node.Entries[target.entryIdx].BBox
	}
	res := split(t.cfg, target.height, newNode.Entries, parentBBox)

	g1 := old.Clone()
	g1.Entries = res.group1
	g2 := old.Clone()
	g2.Entries = res.group2
	newPageID := t.allocatePage()

	if err := t.store.PutDirty(target.pageID, old, g1, target.height); err != nil {
		return err
	}
	if err := t.store.PutNew(newPageID, g2, target.height); err != nil {
		return err
	}
	path[leafIdx].node = g1
	sibling := codec.Entry{Pointer: newPageID, BBox: g2.BBox()}
	if t.cfg.Kind == codec.HilbertTree {
		sibling.LHV = t.maxLHVOf(g2, target.height)
	}
	t.obs.NodeSplit(target.pageID, target.height, t.cfg.SplitType.String())
	return t.adjustTree(path, &sibling, recordedHeight)
}

// adjustTree walks path upward from the (already-updated) bottom frame,
// tightening each ancestor's entry bbox and, if pending is non-nil,
// inserting pending into the parent (which may itself overflow and split,
// propagating a new pending entry further up). Stops early once an
// ancestor's bbox is unchanged and there is no pending entry left to place.
func (t *Tree) adjustTree(path []stackFrame, pending *codec.Entry, recordedHeight int) error {
	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		child := path[i]
		newParent := parent.node.Clone()
		newBBox := child.node.BBox()
		changed := !newBBox.Equal(newParent.Entries[child.entryIdx].BBox)
		newParent.Entries[child.entryIdx].BBox = newBBox
		if t.cfg.Kind == codec.HilbertTree {
			newLHV := t.maxLHVOf(child.node, child.height)
			if newLHV != newParent.Entries[child.entryIdx].LHV {
				changed = true
			}
			newParent.Entries[child.entryIdx].LHV = newLHV
		}

		if pending == nil {
			if !changed {
				return nil
			}
			if err := t.store.PutDirty(parent.pageID, parent.node, newParent, parent.height); err != nil {
				return err
			}
			path[i-1].node = newParent
			continue
		}

		// A sibling propagated up: add it to the parent.
		grown := newParent.Clone()
		grown.Entries = append(grown.Entries, *pending)
		if len(grown.Entries) <= t.cfg.maxFor(parent.height) {
			if err := t.store.PutDirty(parent.pageID, parent.node, grown, parent.height); err != nil {
				return err
			}
			path[i-1].node = grown
			return t.adjustTree(path[:i], nil, recordedHeight)
		}

		res := split(t.cfg, parent.height, grown.Entries, geom.BBox{})
		g1 := parent.node.Clone()
		g1.Entries = res.group1
		g2 := parent.node.Clone()
		g2.Entries = res.group2
		newPageID := t.allocatePage()
		if err := t.store.PutDirty(parent.pageID, parent.node, g1, parent.height); err != nil {
			return err
		}
		if err := t.store.PutNew(newPageID, g2, parent.height); err != nil {
			return err
		}
		path[i-1].node = g1
		sib := codec.Entry{Pointer: newPageID, BBox: g2.BBox()}
		if t.cfg.Kind == codec.HilbertTree {
			sib.LHV = t.maxLHVOf(g2, parent.height)
		}
		t.obs.NodeSplit(parent.pageID, parent.height, t.cfg.SplitType.String())
		pending = &sib
	}

	if pending != nil {
		return t.growRoot(path[0], *pending)
	}
	return nil
}

// growRoot allocates a new root over the current root and the propagated
// sibling, incrementing tree height, spec.md §4.5 step 4.
func (t *Tree) growRoot(oldRoot stackFrame, sibling codec.Entry) error {
	newRootID := t.allocatePage()
	rootEntry := codec.Entry{Pointer: oldRoot.pageID, BBox: oldRoot.node.BBox()}
	if t.cfg.Kind == codec.HilbertTree {
		rootEntry.LHV = t.maxLHVOf(oldRoot.node, oldRoot.height)
	}
	newRoot := codec.Node{
		Kind:    oldRoot.node.Kind,
		Height:  oldRoot.height + 1,
		Entries: []codec.Entry{rootEntry, sibling},
	}
	if err := t.store.PutNew(newRootID, newRoot, newRoot.Height); err != nil {
		return err
	}
	t.info.SetRootPageID(newRootID)
	t.info.UpdateHeight(newRoot.Height)
	return nil
}
