package rtree

import (
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

type reinsertItem struct {
	entry  codec.Entry
	height int
}

// Remove deletes the leaf entry naming pointer with the given geometry,
// spec.md §4.6: FindLeaf, delete, CondenseTree, drain the reinsertion
// queue, then collapse the root if it is left with a single child.
func (t *Tree) Remove(pointer uint32, bbox geom.BBox) error {
	t.reinsertedAtLevel = make(map[int]bool)
	path, idx, err := t.findLeaf(bbox, pointer)
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]
	newLeaf := leaf.node.Clone()
	newLeaf.Entries = append(newLeaf.Entries[:idx], newLeaf.Entries[idx+1:]...)
	if err := t.store.PutDirty(leaf.pageID, leaf.node, newLeaf, leaf.height); err != nil {
		return err
	}
	path[len(path)-1].node = newLeaf

	queue, err := t.condenseTree(path)
	if err != nil {
		return err
	}
	if err := t.maybeCollapseRoot(); err != nil {
		return err
	}
	for _, item := range queue {
		if err := t.insertAtHeight(item.entry, item.height); err != nil {
			return err
		}
	}
	return nil
}

// findLeaf descends every child whose bbox could hold target, using an
// explicit stack, until it finds the leaf entry matching pointer and bbox
// exactly, spec.md §4.6 FindLeaf.
func (t *Tree) findLeaf(target geom.BBox, pointer uint32) ([]stackFrame, int, error) {
	rootID := t.info.RootPageID()
	rootHeight := t.info.Height()
	root, err := t.store.Get(rootID, rootHeight)
	if err != nil {
		return nil, 0, err
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
					return w.path, i, nil
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
				return nil, 0, err
			}
			next := append(append([]stackFrame(nil), w.path...), stackFrame{pageID: e.Pointer, height: cur.height - 1, node: child, entryIdx: i})
			stack = append(stack, work{path: next})
		}
	}
	return nil, 0, ErrNotFound
}

// condenseTree climbs from the leaf to the root: any node that fell below
// its minimum occupancy is detached and its surviving entries queued for
// reinsertion at their original height; otherwise ancestor bboxes are
// tightened, stopping early once a bbox is unchanged and nothing was
// detached at that step.
func (t *Tree) condenseTree(path []stackFrame) ([]reinsertItem, error) {
	var queue []reinsertItem

	for i := len(path) - 1; i > 0; i-- {
		parent := path[i-1]
		child := path[i]

		if len(child.node.Entries) < t.cfg.minFor(child.height) {
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

		newBBox := child.node.BBox()
		if newBBox.Equal(parent.node.Entries[child.entryIdx].BBox) {
			break
		}
		newParent := parent.node.Clone()
		newParent.Entries[child.entryIdx].BBox = newBBox
		if t.cfg.Kind == codec.HilbertTree {
			newParent.Entries[child.entryIdx].LHV = t.maxLHVOf(child.node, child.height)
		}
		if err := t.store.PutDirty(parent.pageID, parent.node, newParent, parent.height); err != nil {
			return nil, err
		}
		path[i-1].node = newParent
	}
	return queue, nil
}

// maybeCollapseRoot frees the root page and promotes its sole child when
// height > 0 and exactly one entry remains, spec.md §4.6.
func (t *Tree) maybeCollapseRoot() error {
	rootID := t.info.RootPageID()
	rootHeight := t.info.Height()
	if rootHeight == 0 {
		return nil
	}
	root, err := t.store.Get(rootID, rootHeight)
	if err != nil {
		return err
	}
	if len(root.Entries) != 1 {
		return nil
	}
	childID := root.Entries[0].Pointer
	if err := t.store.Delete(rootID, rootHeight); err != nil {
		return err
	}
	t.freePage(rootID)
	t.info.SetRootPageID(childID)
	t.info.UpdateHeight(rootHeight - 1)
	return nil
}
