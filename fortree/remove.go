package fortree

import (
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// removeLoc identifies exactly which physical page held the removed entry:
// the primary node itself, or one specific page of its overflow chain.
type removeLoc struct {
	pageID     uint32
	idx        int
	isOverflow bool
}

type reinsertItem struct {
	entry  codec.Entry
	height int
}

// Remove deletes the leaf entry naming pointer with the given geometry,
// SPEC_FULL.md §4.6 / spec.md §4.8 Remove: symmetric to AddElement — a
// P-node without an overflow chain that falls under minimum occupancy is
// detached and its entries queued for reinsertion; a P-node that still
// has O-nodes runs MergeBack on the reduced set instead.
func (t *Tree) Remove(pointer uint32, bbox geom.BBox) error {
	path, loc, err := t.findLeaf(bbox, pointer)
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]

	if !loc.isOverflow {
		newNode := leaf.node.Clone()
		newNode.Entries = append(newNode.Entries[:loc.idx], newNode.Entries[loc.idx+1:]...)
		if err := t.store.PutDirty(leaf.pageID, leaf.node, newNode, leaf.height); err != nil {
			return err
		}
		path[len(path)-1].node = newNode
	} else {
		on, err := t.store.Get(loc.pageID, leaf.height)
		if err != nil {
			return err
		}
		newOn := on.Clone()
		newOn.Entries = append(newOn.Entries[:loc.idx], newOn.Entries[loc.idx+1:]...)
		if err := t.store.PutDirty(loc.pageID, on, newOn, leaf.height); err != nil {
			return err
		}
		if oe := t.overflow[leaf.pageID]; oe != nil && len(newOn.Entries) == 0 {
			for i, p := range oe.pages {
				if p == loc.pageID {
					oe.pages = append(oe.pages[:i], oe.pages[i+1:]...)
					break
				}
			}
			if err := t.store.Delete(loc.pageID, leaf.height); err != nil {
				return err
			}
			t.freePage(loc.pageID)
			if len(oe.pages) == 0 {
				delete(t.overflow, leaf.pageID)
			}
		}
	}

	queue, err := t.condense(path)
	if err != nil {
		return err
	}
	for _, item := range queue {
		itemPath, err := t.chooseNode(item.entry.BBox, item.height)
		if err != nil {
			return err
		}
		if err := t.addToNode(itemPath, item.entry); err != nil {
			return err
		}
	}
	return nil
}

// findLeaf descends every child whose chain bbox could hold target, using
// an explicit stack, checking both the primary node's own entries and its
// overflow chain at the leaf level.
func (t *Tree) findLeaf(target geom.BBox, pointer uint32) ([]stackFrame, removeLoc, error) {
	rootID := t.info.RootPageID()
	rootHeight := t.info.Height()
	root, err := t.store.Get(rootID, rootHeight)
	if err != nil {
		return nil, removeLoc{}, err
	}

	type work struct{ path []stackFrame }
	stack := []work{{path: []stackFrame{{pageID: rootID, height: rootHeight, node: root, entryIdx: -1}}}}

	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur := w.path[len(w.path)-1]

		if cur.height == 0 {
			for i, e := range cur.node.Entries {
				if e.Pointer == pointer && e.BBox.Equal(target) {
					return w.path, removeLoc{pageID: cur.pageID, idx: i}, nil
				}
			}
			if oe := t.overflow[cur.pageID]; oe != nil {
				for _, opID := range oe.pages {
					on, err := t.store.Get(opID, 0)
					if err != nil {
						return nil, removeLoc{}, err
					}
					for i, e := range on.Entries {
						if e.Pointer == pointer && e.BBox.Equal(target) {
							return w.path, removeLoc{pageID: opID, idx: i, isOverflow: true}, nil
						}
					}
				}
			}
			continue
		}
		for i, e := range cur.node.Entries {
			if !e.BBox.Covers(target) {
				continue
			}
			child, err := t.store.Get(e.Pointer, cur.height-1)
			if err != nil {
				return nil, removeLoc{}, err
			}
			next := append(append([]stackFrame(nil), w.path...), stackFrame{pageID: e.Pointer, height: cur.height - 1, node: child, entryIdx: i})
			stack = append(stack, work{path: next})
		}
	}
	return nil, removeLoc{}, ErrNotFound
}

// condense climbs from the leaf to the root. A node without an overflow
// chain that fell under minimum occupancy is detached and queued for
// reinsertion; one with an overflow chain runs MergeBack on the reduced
// set instead of detaching. Otherwise ancestor chain bboxes are tightened.
func (t *Tree) condense(path []stackFrame) ([]reinsertItem, error) {
	var queue []reinsertItem

	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		child := path[i]

		if len(child.node.Entries) < t.cfg.minFor(child.height) {
			oe := t.overflow[child.pageID]
			if oe == nil || len(oe.pages) == 0 {
				for _, e := range child.node.Entries {
					queue = append(queue, reinsertItem{entry: e, height: child.height})
				}
				if err := t.store.Delete(child.pageID, child.height); err != nil {
					return nil, err
				}
				t.freePage(child.pageID)

				newParent := parent.node.Clone()
				newParent.Entries = append(newParent.Entries[:child.entryIdx], newParent.Entries[child.entryIdx+1:]...)
				if err := t.store.PutDirty(parent.pageID, parent.node, newParent, parent.height); err != nil {
					return nil, err
				}
				path[i-1].node = newParent
				continue
			}

			newPrimary, promoted, err := t.mergeBack(child.pageID, child.height)
			if err != nil {
				return nil, err
			}
			path[i].node = newPrimary
			if len(promoted) > 0 {
				parentPath := path[:i]
				for _, e := range promoted {
					if err := t.addToNode(parentPath, e); err != nil {
						return nil, err
					}
				}
				continue
			}
		}

		newBBox, err := t.chainBBox(child.pageID, child.node)
		if err != nil {
			return nil, err
		}
		if newBBox.Equal(parent.node.Entries[child.entryIdx].BBox) {
			break
		}
		newParent := parent.node.Clone()
		newParent.Entries[child.entryIdx].BBox = newBBox
		if err := t.store.PutDirty(parent.pageID, parent.node, newParent, parent.height); err != nil {
			return nil, err
		}
		path[i-1].node = newParent
	}
	return queue, nil
}
