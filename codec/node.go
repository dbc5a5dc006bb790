// Package codec defines the page-resident node model shared by every tree
// core and buffer manager, and serializes/deserializes it to/from fixed
// size page buffers per spec.md §4.2 and §6.
package codec

import "github.com/intellect4all/geoindex/geom"

// Kind distinguishes the tree family a node belongs to, since Hilbert
// nodes carry an extra LHV field internal entries of other kinds don't.
type Kind int

const (
	RTree Kind = iota
	RStarTree
	HilbertTree
	FORTree
)

// Entry is one slot of a node: for a leaf it names an external spatial
// object by Pointer; for an internal node Pointer is the child page id.
// LHV is only meaningful for Hilbert internal entries.
type Entry struct {
	Pointer uint32
	BBox    geom.BBox
	LHV     uint64
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	return Entry{Pointer: e.Pointer, BBox: e.BBox.Clone(), LHV: e.LHV}
}

// Node is the in-RAM representation of a single page's worth of entries.
// Height 0 means leaf; height > 0 means internal, at that many levels
// above the leaves.
type Node struct {
	Kind    Kind
	Height  int
	Entries []Entry
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	entries := make([]Entry, len(n.Entries))
	for i, e := range n.Entries {
		entries[i] = e.Clone()
	}
	return Node{Kind: n.Kind, Height: n.Height, Entries: entries}
}

// IsLeaf reports whether n sits at the leaf level.
func (n Node) IsLeaf() bool { return n.Height == 0 }

// NumEntries returns the number of live entries.
func (n Node) NumEntries() int { return len(n.Entries) }

// BBox returns the union of every entry's bbox, or the zero value if n has
// no entries.
func (n Node) BBox() geom.BBox {
	if len(n.Entries) == 0 {
		return geom.BBox{}
	}
	b := n.Entries[0].BBox.Clone()
	for _, e := range n.Entries[1:] {
		b.ExpandToInclude(e.BBox)
	}
	return b
}
