package buffer

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/intellect4all/geoindex/codec"
)

type cacheEntry struct {
	node  codec.Node
	dirty bool
}

// LRU is the plain recency-ordered variant of §4.9, backed by
// hashicorp/golang-lru for the hot chain itself; eviction write-back and
// capacity accounting are layered on top since golang-lru's eviction
// callback fires after removal, which is exactly where spec.md wants the
// write-back to happen.
type LRU struct {
	src         Source
	cache       *lru.Cache[uint32, *cacheEntry]
	maxEntries  int
	pageSize    int
	evictErr    error
}

// NewLRU builds an LRU buffer capped at maxBytes, each entry costing
// pageSize+4 bytes per spec.md's capacity formula.
func NewLRU(src Source, pageSize, maxBytes int) *LRU {
	maxEntries := capacityEntries(maxBytes, pageSize, false)
	l := &LRU{src: src, pageSize: pageSize, maxEntries: maxEntries}
	c, _ := lru.NewWithEvict[uint32, *cacheEntry](maxEntries, l.onEvict)
	l.cache = c
	return l
}

func capacityEntries(maxBytes, pageSize int, withLevel bool) int {
	es := entrySize(pageSize, withLevel)
	if es <= 0 {
		return 1
	}
	n := maxBytes / es
	if n < 1 {
		n = 1
	}
	return n
}

func (l *LRU) onEvict(pageID uint32, e *cacheEntry) {
	if !e.dirty {
		return
	}
	if err := l.src.WriteNode(pageID, e.node); err != nil {
		l.evictErr = err
	}
}

func (l *LRU) Find(pageID uint32, height int) (codec.Node, error) {
	if e, ok := l.cache.Get(pageID); ok {
		return e.node, nil
	}
	n, err := l.src.ReadNode(pageID, height)
	if err != nil {
		return codec.Node{}, err
	}
	l.cache.Add(pageID, &cacheEntry{node: n})
	return n, l.takeEvictErr()
}

func (l *LRU) PutClean(pageID uint32, n codec.Node) {
	l.cache.Add(pageID, &cacheEntry{node: n})
}

func (l *LRU) PutDirty(pageID uint32, n codec.Node) {
	l.cache.Add(pageID, &cacheEntry{node: n, dirty: true})
}

func (l *LRU) FlushAll() error {
	for _, k := range l.cache.Keys() {
		e, ok := l.cache.Peek(k)
		if !ok || !e.dirty {
			continue
		}
		if err := l.src.WriteNode(k, e.node); err != nil {
			return err
		}
		e.dirty = false
	}
	return l.takeEvictErr()
}

// Evict drops pageID without writing it back, e.g. after a delete has
// already overwritten its disk image with a tombstone.
func (l *LRU) Evict(pageID uint32) { l.cache.Remove(pageID) }

func (l *LRU) Len() int { return l.cache.Len() }

func (l *LRU) takeEvictErr() error {
	err := l.evictErr
	l.evictErr = nil
	return err
}
