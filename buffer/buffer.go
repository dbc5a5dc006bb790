// Package buffer implements the generic page-granular buffer interface
// (spec.md §4.9) shared by the standard variants (LRU, HLRU, Simplified
// 2Q, Full 2Q) and, at a higher level, by the FAST and eFIND read paths.
package buffer

import "github.com/intellect4all/geoindex/codec"

// Source is the read-through collaborator a Buffer misses into: the page
// store plus enough context (dimension, tree kind) to decode a node.
type Source interface {
	ReadNode(pageID uint32, height int) (codec.Node, error)
	WriteNode(pageID uint32, n codec.Node) error
}

// Buffer is the operation surface every standard variant implements, per
// spec.md §4.9: find (read-through on miss), put_clean/put_dirty, and
// flush_all.
type Buffer interface {
	// Find returns the cached node for pageID, reading through Source on
	// a miss and inserting the result as clean.
	Find(pageID uint32, height int) (codec.Node, error)
	// PutClean inserts or refreshes pageID's cached image without marking
	// it dirty (e.g. after a successful flush).
	PutClean(pageID uint32, n codec.Node)
	// PutDirty inserts or refreshes pageID's cached image and marks it
	// dirty, so eviction writes it back before dropping it.
	PutDirty(pageID uint32, n codec.Node)
	// FlushAll writes every dirty entry back through Source and clears
	// the dirty set.
	FlushAll() error
	// Evict drops pageID from the cache without writing it back, for
	// callers that have just overwritten its disk image out of band (a
	// delete's tombstone write).
	Evict(pageID uint32)
	// Len reports the number of resident entries, for capacity tests.
	Len() int
}

// entrySize approximates the byte cost of caching one page, per spec.md
// §4.9 ("nof_entries * (page_size + id_size[+level_size])").
func entrySize(pageSize int, withLevel bool) int {
	const idSize = 4
	const levelSize = 4
	sz := pageSize + idSize
	if withLevel {
		sz += levelSize
	}
	return sz
}
