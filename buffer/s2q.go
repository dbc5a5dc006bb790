package buffer

import (
	"container/list"

	"github.com/intellect4all/geoindex/codec"
)

// S2Q is the "simplified 2Q" variant of spec.md §4.9: an LRU chain Am for
// pages that have proven hot, and a FIFO chain A1 holding only ids (no
// page data) for pages seen once. A1 pages are written through to disk
// immediately since A1 doesn't cache their bytes.
type S2Q struct {
	src Source

	am      *list.List
	amIndex map[uint32]*list.Element
	amMax   int

	a1      *list.List // FIFO of page ids only
	a1Index map[uint32]*list.Element
	a1Max   int
}

type s2qEntry struct {
	pageID uint32
	node   codec.Node
	dirty  bool
}

func NewS2Q(src Source, pageSize, maxBytes int) *S2Q {
	total := capacityEntries(maxBytes, pageSize, false)
	amMax := total / 2
	if amMax < 1 {
		amMax = 1
	}
	a1Max := total - amMax
	if a1Max < 1 {
		a1Max = 1
	}
	return &S2Q{
		src:     src,
		am:      list.New(),
		amIndex: make(map[uint32]*list.Element),
		amMax:   amMax,
		a1:      list.New(),
		a1Index: make(map[uint32]*list.Element),
		a1Max:   a1Max,
	}
}

func (s *S2Q) Find(pageID uint32, height int) (codec.Node, error) {
	if e, ok := s.amIndex[pageID]; ok {
		s.am.MoveToFront(e)
		return e.Value.(*s2qEntry).node, nil
	}
	if _, ok := s.a1Index[pageID]; ok {
		// Promote A1 hit into Am.
		n, err := s.src.ReadNode(pageID, height)
		if err != nil {
			return codec.Node{}, err
		}
		s.removeFromA1(pageID)
		s.insertAm(pageID, n, false)
		return n, nil
	}
	n, err := s.src.ReadNode(pageID, height)
	if err != nil {
		return codec.Node{}, err
	}
	s.insertA1(pageID, n, false)
	return n, nil
}

func (s *S2Q) PutClean(pageID uint32, n codec.Node) { s.put(pageID, n, false) }
func (s *S2Q) PutDirty(pageID uint32, n codec.Node) { s.put(pageID, n, true) }

func (s *S2Q) put(pageID uint32, n codec.Node, dirty bool) {
	if e, ok := s.amIndex[pageID]; ok {
		entry := e.Value.(*s2qEntry)
		entry.node = n
		entry.dirty = dirty
		s.am.MoveToFront(e)
		return
	}
	if _, ok := s.a1Index[pageID]; ok {
		s.removeFromA1(pageID)
		s.insertAm(pageID, n, dirty)
		return
	}
	s.insertA1(pageID, n, dirty)
}

func (s *S2Q) insertAm(pageID uint32, n codec.Node, dirty bool) {
	if s.am.Len() >= s.amMax {
		s.evictAm()
	}
	e := s.am.PushFront(&s2qEntry{pageID: pageID, node: n, dirty: dirty})
	s.amIndex[pageID] = e
}

func (s *S2Q) insertA1(pageID uint32, n codec.Node, dirty bool) {
	// A1 writes through immediately: it doesn't retain dirty pages across
	// eviction, matching spec.md's "writes of A1 pages pass through to
	// disk".
	if dirty {
		_ = s.src.WriteNode(pageID, n)
	}
	if s.a1.Len() >= s.a1Max {
		back := s.a1.Back()
		if back != nil {
			entry := back.Value.(*s2qEntry)
			delete(s.a1Index, entry.pageID)
			s.a1.Remove(back)
		}
	}
	e := s.a1.PushFront(&s2qEntry{pageID: pageID})
	s.a1Index[pageID] = e
}

func (s *S2Q) removeFromA1(pageID uint32) {
	if e, ok := s.a1Index[pageID]; ok {
		s.a1.Remove(e)
		delete(s.a1Index, pageID)
	}
}

func (s *S2Q) evictAm() {
	back := s.am.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*s2qEntry)
	if entry.dirty {
		_ = s.src.WriteNode(entry.pageID, entry.node)
	}
	delete(s.amIndex, entry.pageID)
	s.am.Remove(back)
}

func (s *S2Q) FlushAll() error {
	for e := s.am.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*s2qEntry)
		if !entry.dirty {
			continue
		}
		if err := s.src.WriteNode(entry.pageID, entry.node); err != nil {
			return err
		}
		entry.dirty = false
	}
	return nil
}

// Evict drops pageID from whichever chain holds it, without writing back.
func (s *S2Q) Evict(pageID uint32) {
	if e, ok := s.amIndex[pageID]; ok {
		delete(s.amIndex, pageID)
		s.am.Remove(e)
		return
	}
	s.removeFromA1(pageID)
}

func (s *S2Q) Len() int { return s.am.Len() + s.a1.Len() }
