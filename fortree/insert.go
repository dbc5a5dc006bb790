package fortree

import (
	"math"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/rtree"
)

// AddElement inserts a new external object at the leaf level, SPEC_FULL.md
// §4.6 / spec.md §4.8: room in the primary node wins; otherwise an existing
// O-node with room takes it; otherwise a fresh O-node is chained on. Once
// placed in an O-node, tsc(P) is checked against the merge-back threshold
// for the chain's length.
func (t *Tree) AddElement(pointer uint32, bbox geom.BBox) error {
	path, err := t.chooseNode(bbox, 0)
	if err != nil {
		return err
	}
	return t.addToNode(path, codec.Entry{Pointer: pointer, BBox: bbox})
}

// chooseNode descends like R-tree ChooseSubtree, but every candidate
// P-node's entry bbox already reflects the union of the node and its whole
// overflow chain (kept current by propagateChainBBox), so the comparison
// naturally accounts for every O-node, SPEC_FULL.md §4.6 ChooseNode.
func (t *Tree) chooseNode(bbox geom.BBox, targetHeight int) ([]stackFrame, error) {
	rootID := t.info.RootPageID()
	rootHeight := t.info.Height()
	root, err := t.store.Get(rootID, rootHeight)
	if err != nil {
		return nil, err
	}
	path := []stackFrame{{pageID: rootID, height: rootHeight, node: root, entryIdx: -1}}

	for path[len(path)-1].height > targetHeight {
		cur := path[len(path)-1]
		best := -1
		bestEnl := math.Inf(1)
		bestArea := math.Inf(1)
		for i, e := range cur.node.Entries {
			enl := e.BBox.EnlargementArea(bbox)
			area := e.BBox.Area()
			if enl < bestEnl || (enl == bestEnl && area < bestArea) {
				best, bestEnl, bestArea = i, enl, area
			}
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

// addToNode places entry into the node at the bottom of path: directly if
// there is room, else into the first O-node with room, else onto a freshly
// allocated O-node. It then refreshes every ancestor's chain bbox and, when
// the entry went to an O-node and tsc(P) has reached the merge-back
// threshold for the chain's length, runs MergeBack.
func (t *Tree) addToNode(path []stackFrame, entry codec.Entry) error {
	target := path[len(path)-1]
	max := t.cfg.maxFor(target.height)

	if len(target.node.Entries) < max {
		newNode := target.node.Clone()
		newNode.Entries = append(newNode.Entries, entry)
		if err := t.store.PutDirty(target.pageID, target.node, newNode, target.height); err != nil {
			return err
		}
		path[len(path)-1].node = newNode
		return t.propagateChainBBox(path)
	}

	oe := t.overflow[target.pageID]
	if oe != nil {
		for _, opID := range oe.pages {
			on, err := t.store.Get(opID, target.height)
			if err != nil {
				return err
			}
			if len(on.Entries) < max {
				newOn := on.Clone()
				newOn.Entries = append(newOn.Entries, entry)
				if err := t.store.PutDirty(opID, on, newOn, target.height); err != nil {
					return err
				}
				if err := t.propagateChainBBox(path); err != nil {
					return err
				}
				if float64(oe.tsc) >= t.threshold(len(oe.pages)) {
					return t.runMergeBack(path)
				}
				return nil
			}
		}
	}

	newOPage := t.allocatePage()
	onNode := codec.Node{Kind: target.node.Kind, Height: target.height, Entries: []codec.Entry{entry}}
	if err := t.store.PutNew(newOPage, onNode, target.height); err != nil {
		return err
	}
	if oe == nil {
		oe = &overflowEntry{}
		t.overflow[target.pageID] = oe
	}
	oe.pages = append(oe.pages, newOPage)
	k := len(oe.pages)

	if err := t.propagateChainBBox(path); err != nil {
		return err
	}
	if float64(oe.tsc) >= t.threshold(k) {
		return t.runMergeBack(path)
	}
	return nil
}

// propagateChainBBox tightens every ancestor entry bbox to the current
// chain bbox of its child, stopping early once nothing changed.
func (t *Tree) propagateChainBBox(path []stackFrame) error {
	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		child := path[i]
		newBBox, err := t.chainBBox(child.pageID, child.node)
		if err != nil {
			return err
		}
		if newBBox.Equal(parent.node.Entries[child.entryIdx].BBox) {
			return nil
		}
		newParent := parent.node.Clone()
		newParent.Entries[child.entryIdx].BBox = newBBox
		if err := t.store.PutDirty(parent.pageID, parent.node, newParent, parent.height); err != nil {
			return err
		}
		path[i-1].node = newParent
	}
	return nil
}

// runMergeBack consolidates the bottom node of path and its overflow chain,
// then either promotes the resulting O-nodes into the parent as ordinary
// sibling entries (recursing through addToNode, so a full parent can itself
// chain an O-node or merge-back) or, if the bottom node is the root, grows a new root
// over it, SPEC_FULL.md §4.6 AdjustTree.
func (t *Tree) runMergeBack(path []stackFrame) error {
	target := path[len(path)-1]
	newPrimary, promoted, err := t.mergeBack(target.pageID, target.height)
	if err != nil {
		return err
	}
	path[len(path)-1].node = newPrimary
	t.obs.MergeBack(target.pageID, target.height, len(promoted))

	if len(promoted) == 0 {
		return t.propagateChainBBox(path)
	}
	if len(path) == 1 {
		return t.growRoot(path[0], promoted)
	}
	parentPath := path[:len(path)-1]
	for _, e := range promoted {
		if err := t.addToNode(parentPath, e); err != nil {
			return err
		}
	}
	return nil
}

// growRoot wraps the current root and the entries promoted out of its
// merge-back into a new root, splitting if they don't fit in one node,
// SPEC_FULL.md §4.6 "at the root, height growth".
func (t *Tree) growRoot(oldRoot stackFrame, promoted []codec.Entry) error {
	rootBBox, err := t.chainBBox(oldRoot.pageID, oldRoot.node)
	if err != nil {
		return err
	}
	rootEntry := codec.Entry{Pointer: oldRoot.pageID, BBox: rootBBox}
	candidate := append([]codec.Entry{rootEntry}, promoted...)
	height := oldRoot.height + 1

	if len(candidate) <= t.cfg.maxFor(height) {
		newRootID := t.allocatePage()
		newRoot := codec.Node{Kind: oldRoot.node.Kind, Height: height, Entries: candidate}
		if err := t.store.PutNew(newRootID, newRoot, height); err != nil {
			return err
		}
		t.info.SetRootPageID(newRootID)
		t.info.UpdateHeight(height)
		return nil
	}

	t.obs.NodeSplit(oldRoot.pageID, height, "fortree-root-growth")
	g1, g2 := rtree.SplitEntries(t.cfg.asRtreeConfig(), height, candidate, geom.BBox{})
	p1, p2 := t.allocatePage(), t.allocatePage()
	n1 := codec.Node{Kind: oldRoot.node.Kind, Height: height, Entries: g1}
	n2 := codec.Node{Kind: oldRoot.node.Kind, Height: height, Entries: g2}
	if err := t.store.PutNew(p1, n1, height); err != nil {
		return err
	}
	if err := t.store.PutNew(p2, n2, height); err != nil {
		return err
	}
	newRootID := t.allocatePage()
	newRoot := codec.Node{
		Kind:   oldRoot.node.Kind,
		Height: height + 1,
		Entries: []codec.Entry{
			{Pointer: p1, BBox: n1.BBox()},
			{Pointer: p2, BBox: n2.BBox()},
		},
	}
	if err := t.store.PutNew(newRootID, newRoot, height+1); err != nil {
		return err
	}
	t.info.SetRootPageID(newRootID)
	t.info.UpdateHeight(height + 1)
	return nil
}
