package buffer

import (
	"container/list"

	"github.com/intellect4all/geoindex/codec"
)

type hlruEntry struct {
	pageID uint32
	node   codec.Node
	dirty  bool
	level  int
}

// HLRU extends LRU with a per-entry tree level and a current tree height
// (spec.md §4.9): eviction scans from the LRU tail for the first entry
// whose level is either <= the requested level or > the current tree
// height, rather than blindly evicting the least-recently-used entry.
// golang-lru's eviction policy can't express a predicate over level, so
// this variant keeps its own list+map, the way the teacher's Pager does.
type HLRU struct {
	src          Source
	order        *list.List // front = most recently used
	index        map[uint32]*list.Element
	maxEntries   int
	currentLevel int // current tree height, updated by NotifyHeightChange
}

func NewHLRU(src Source, pageSize, maxBytes int) *HLRU {
	return &HLRU{
		src:        src,
		order:      list.New(),
		index:      make(map[uint32]*list.Element),
		maxEntries: capacityEntries(maxBytes, pageSize, true),
	}
}

// NotifyHeightChange couples the buffer to tree-height changes, per
// spec.md §4.11 "Height coupling": future evictions must respect the new
// height.
func (h *HLRU) NotifyHeightChange(newHeight int) { h.currentLevel = newHeight }

func (h *HLRU) touch(e *list.Element) { h.order.MoveToFront(e) }

func (h *HLRU) Find(pageID uint32, height int) (codec.Node, error) {
	if e, ok := h.index[pageID]; ok {
		h.touch(e)
		return e.Value.(*hlruEntry).node, nil
	}
	n, err := h.src.ReadNode(pageID, height)
	if err != nil {
		return codec.Node{}, err
	}
	h.insert(pageID, n, false, height)
	return n, nil
}

func (h *HLRU) PutClean(pageID uint32, n codec.Node) {
	h.put(pageID, n, false)
}

func (h *HLRU) PutDirty(pageID uint32, n codec.Node) {
	h.put(pageID, n, true)
}

func (h *HLRU) put(pageID uint32, n codec.Node, dirty bool) {
	if e, ok := h.index[pageID]; ok {
		entry := e.Value.(*hlruEntry)
		entry.node = n
		entry.dirty = dirty
		entry.level = n.Height
		h.touch(e)
		return
	}
	h.insert(pageID, n, dirty, n.Height)
}

func (h *HLRU) insert(pageID uint32, n codec.Node, dirty bool, level int) {
	if h.order.Len() >= h.maxEntries {
		h.evictOne(level)
	}
	e := h.order.PushFront(&hlruEntry{pageID: pageID, node: n, dirty: dirty, level: level})
	h.index[pageID] = e
}

// evictOne drops the first entry found scanning from the LRU tail whose
// level <= requestedLevel or whose level exceeds the current tree height;
// if none match, it falls back to plain LRU eviction of the tail.
func (h *HLRU) evictOne(requestedLevel int) {
	for e := h.order.Back(); e != nil; e = e.Prev() {
		entry := e.Value.(*hlruEntry)
		if entry.level <= requestedLevel || entry.level > h.currentLevel {
			h.dropEntry(e)
			return
		}
	}
	if back := h.order.Back(); back != nil {
		h.dropEntry(back)
	}
}

func (h *HLRU) dropEntry(e *list.Element) {
	entry := e.Value.(*hlruEntry)
	if entry.dirty {
		_ = h.src.WriteNode(entry.pageID, entry.node)
	}
	delete(h.index, entry.pageID)
	h.order.Remove(e)
}

func (h *HLRU) FlushAll() error {
	for e := h.order.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*hlruEntry)
		if !entry.dirty {
			continue
		}
		if err := h.src.WriteNode(entry.pageID, entry.node); err != nil {
			return err
		}
		entry.dirty = false
	}
	return nil
}

// Evict drops pageID without writing it back.
func (h *HLRU) Evict(pageID uint32) {
	if e, ok := h.index[pageID]; ok {
		delete(h.index, pageID)
		h.order.Remove(e)
	}
}

func (h *HLRU) Len() int { return h.order.Len() }
