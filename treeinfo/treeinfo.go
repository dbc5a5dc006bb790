// Package treeinfo implements per-tree metadata: page id allocation, the
// free-page stack, and height tracking (spec.md §3 "Tree info", §4.4).
//
// Per spec.md §5, the engine is single-threaded and cooperative: one
// operation runs to completion before the next begins, and nothing here
// takes a lock. Callers are responsible for exclusive access.
package treeinfo

// Info is the mutable bookkeeping every tree core shares. It is re-
// encapsulated as a plain struct (no package-level globals), per
// spec.md §9's "global mutable state must be re-encapsulated as fields".
type Info struct {
	rootPageID    uint32
	height        int
	emptyPages    []uint32 // stack, last element is top
	lastAllocated uint32
}

// New creates tree-info for a brand-new tree whose root occupies rootPage.
func New(rootPage uint32) *Info {
	return &Info{rootPageID: rootPage, lastAllocated: rootPage}
}

// Restore reconstructs tree-info from persisted header fields (used by
// header-file loading and by WAL recovery).
func Restore(rootPage uint32, height int, emptyPages []uint32, lastAllocated uint32) *Info {
	cp := make([]uint32, len(emptyPages))
	copy(cp, emptyPages)
	return &Info{rootPageID: rootPage, height: height, emptyPages: cp, lastAllocated: lastAllocated}
}

// Allocate pops a page id from the free list if one exists, else extends
// the file by returning the next unused id.
func (i *Info) Allocate() uint32 {
	if n := len(i.emptyPages); n > 0 {
		id := i.emptyPages[n-1]
		i.emptyPages = i.emptyPages[:n-1]
		return id
	}
	i.lastAllocated++
	return i.lastAllocated
}

// Free pushes pageID onto the free list. Callers must ensure no live node
// still references pageID (spec.md §3 ownership invariant).
func (i *Info) Free(pageID uint32) {
	i.emptyPages = append(i.emptyPages, pageID)
}

// RootPageID returns the current root page id.
func (i *Info) RootPageID() uint32 { return i.rootPageID }

// SetRootPageID updates the root page id (root split/collapse).
func (i *Info) SetRootPageID(id uint32) { i.rootPageID = id }

// Height returns the current tree height (0 = single leaf root).
func (i *Info) Height() int { return i.height }

// UpdateHeight is called by the tree layer on root growth/shrink.
func (i *Info) UpdateHeight(newHeight int) { i.height = newHeight }

// Snapshot returns a consistent copy of every field, for header
// persistence.
func (i *Info) Snapshot() (rootPageID uint32, height int, emptyPages []uint32, lastAllocated uint32) {
	cp := make([]uint32, len(i.emptyPages))
	copy(cp, i.emptyPages)
	return i.rootPageID, i.height, cp, i.lastAllocated
}

// FreePageCount reports the size of the free list, used by invariant (5)
// checks (free-page set and live-page set are disjoint) in tests.
func (i *Info) FreePageCount() int { return len(i.emptyPages) }

// IsFree reports whether pageID is currently in the free list.
func (i *Info) IsFree(pageID uint32) bool {
	for _, id := range i.emptyPages {
		if id == pageID {
			return true
		}
	}
	return false
}
