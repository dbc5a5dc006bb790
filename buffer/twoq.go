package buffer

import (
	"container/list"

	"github.com/intellect4all/geoindex/codec"
)

// TwoQ is the "full 2Q" variant of spec.md §4.9: Am (LRU, holds data),
// A1in (FIFO, holds data), and A1out (FIFO of ids only, a ghost list). A
// miss in Am and A1in that hits A1out promotes straight into Am; a pure
// miss goes into A1in.
type TwoQ struct {
	src Source

	am      *list.List
	amIndex map[uint32]*list.Element
	amMax   int

	a1in      *list.List
	a1inIndex map[uint32]*list.Element
	a1inMax   int

	a1out      *list.List // ghost: ids only
	a1outIndex map[uint32]*list.Element
	a1outMax   int
}

type twoqEntry struct {
	pageID uint32
	node   codec.Node
	dirty  bool
}

func NewTwoQ(src Source, pageSize, maxBytes int) *TwoQ {
	total := capacityEntries(maxBytes, pageSize, false)
	amMax := total / 2
	if amMax < 1 {
		amMax = 1
	}
	a1inMax := total / 4
	if a1inMax < 1 {
		a1inMax = 1
	}
	a1outMax := total - amMax - a1inMax
	if a1outMax < 1 {
		a1outMax = 1
	}
	return &TwoQ{
		src:        src,
		am:         list.New(),
		amIndex:    make(map[uint32]*list.Element),
		amMax:      amMax,
		a1in:       list.New(),
		a1inIndex:  make(map[uint32]*list.Element),
		a1inMax:    a1inMax,
		a1out:      list.New(),
		a1outIndex: make(map[uint32]*list.Element),
		a1outMax:   a1outMax,
	}
}

func (q *TwoQ) Find(pageID uint32, height int) (codec.Node, error) {
	if e, ok := q.amIndex[pageID]; ok {
		q.am.MoveToFront(e)
		return e.Value.(*twoqEntry).node, nil
	}
	if e, ok := q.a1inIndex[pageID]; ok {
		return e.Value.(*twoqEntry).node, nil
	}

	n, err := q.src.ReadNode(pageID, height)
	if err != nil {
		return codec.Node{}, err
	}

	if _, ok := q.a1outIndex[pageID]; ok {
		q.removeFromA1out(pageID)
		q.insertAm(pageID, n, false)
		return n, nil
	}

	q.insertA1in(pageID, n, false)
	return n, nil
}

func (q *TwoQ) PutClean(pageID uint32, n codec.Node) { q.put(pageID, n, false) }
func (q *TwoQ) PutDirty(pageID uint32, n codec.Node) { q.put(pageID, n, true) }

func (q *TwoQ) put(pageID uint32, n codec.Node, dirty bool) {
	if e, ok := q.amIndex[pageID]; ok {
		entry := e.Value.(*twoqEntry)
		entry.node = n
		entry.dirty = dirty
		q.am.MoveToFront(e)
		return
	}
	if e, ok := q.a1inIndex[pageID]; ok {
		entry := e.Value.(*twoqEntry)
		entry.node = n
		entry.dirty = dirty
		return
	}
	if _, ok := q.a1outIndex[pageID]; ok {
		q.removeFromA1out(pageID)
		q.insertAm(pageID, n, dirty)
		return
	}
	q.insertA1in(pageID, n, dirty)
}

func (q *TwoQ) insertAm(pageID uint32, n codec.Node, dirty bool) {
	if q.am.Len() >= q.amMax {
		q.evictAm()
	}
	e := q.am.PushFront(&twoqEntry{pageID: pageID, node: n, dirty: dirty})
	q.amIndex[pageID] = e
}

func (q *TwoQ) insertA1in(pageID uint32, n codec.Node, dirty bool) {
	if q.a1in.Len() >= q.a1inMax {
		q.evictA1in()
	}
	e := q.a1in.PushFront(&twoqEntry{pageID: pageID, node: n, dirty: dirty})
	q.a1inIndex[pageID] = e
}

// evictA1in moves the oldest A1in entry to A1out, flushing its data if
// dirty since A1out retains only the id.
func (q *TwoQ) evictA1in() {
	back := q.a1in.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*twoqEntry)
	if entry.dirty {
		_ = q.src.WriteNode(entry.pageID, entry.node)
	}
	delete(q.a1inIndex, entry.pageID)
	q.a1in.Remove(back)

	if q.a1out.Len() >= q.a1outMax {
		if oldGhost := q.a1out.Back(); oldGhost != nil {
			delete(q.a1outIndex, oldGhost.Value.(uint32))
			q.a1out.Remove(oldGhost)
		}
	}
	ge := q.a1out.PushFront(entry.pageID)
	q.a1outIndex[entry.pageID] = ge
}

func (q *TwoQ) removeFromA1out(pageID uint32) {
	if e, ok := q.a1outIndex[pageID]; ok {
		q.a1out.Remove(e)
		delete(q.a1outIndex, pageID)
	}
}

func (q *TwoQ) evictAm() {
	back := q.am.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*twoqEntry)
	if entry.dirty {
		_ = q.src.WriteNode(entry.pageID, entry.node)
	}
	delete(q.amIndex, entry.pageID)
	q.am.Remove(back)
}

func (q *TwoQ) FlushAll() error {
	for _, l := range []*list.List{q.am, q.a1in} {
		for e := l.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*twoqEntry)
			if !entry.dirty {
				continue
			}
			if err := q.src.WriteNode(entry.pageID, entry.node); err != nil {
				return err
			}
			entry.dirty = false
		}
	}
	return nil
}

// Evict drops pageID from whichever chain holds it, without writing back.
func (q *TwoQ) Evict(pageID uint32) {
	if e, ok := q.amIndex[pageID]; ok {
		delete(q.amIndex, pageID)
		q.am.Remove(e)
		return
	}
	if e, ok := q.a1inIndex[pageID]; ok {
		delete(q.a1inIndex, pageID)
		q.a1in.Remove(e)
		return
	}
	q.removeFromA1out(pageID)
}

func (q *TwoQ) Len() int { return q.am.Len() + q.a1in.Len() }
