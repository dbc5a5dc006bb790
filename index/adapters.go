package index

import (
	"github.com/intellect4all/geoindex/buffer"
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/efind"
	"github.com/intellect4all/geoindex/fast"
	"github.com/intellect4all/geoindex/geom"
)

// nowFunc supplies the timestamp FAST/eFIND need but rtree.NodeStore and
// fortree.NodeStore have no room for (DESIGN.md's rtree "open questions
// decided"). New and Open both pass systemNow, i.e. time.Now().UnixNano().
type nowFunc func() int64

// noneStore drives a pageSource directly: every call is a disk round trip,
// the "buffer kind = none" configuration spec.md §4.12 allows.
type noneStore struct {
	src *pageSource
}

func (s *noneStore) Get(pageID uint32, height int) (codec.Node, error) {
	return s.src.ReadNode(pageID, height)
}
func (s *noneStore) PutNew(pageID uint32, n codec.Node, height int) error {
	return s.src.WriteNode(pageID, n)
}
func (s *noneStore) PutDirty(pageID uint32, old, n codec.Node, height int) error {
	return s.src.WriteNode(pageID, n)
}
func (s *noneStore) Delete(pageID uint32, height int) error {
	return s.src.WriteTombstone(pageID)
}

// cachedStore drives one of buffer's standard variants (LRU/HLRU/S2Q/2Q),
// whose Buffer interface has no delete primitive: a delete writes the
// tombstone straight through src and evicts any cached copy so a later
// Find can't return stale data, per DESIGN.md's buffer.Evict addition.
type cachedStore struct {
	src *pageSource
	buf buffer.Buffer
}

func (s *cachedStore) Get(pageID uint32, height int) (codec.Node, error) {
	return s.buf.Find(pageID, height)
}
func (s *cachedStore) PutNew(pageID uint32, n codec.Node, height int) error {
	s.buf.PutDirty(pageID, n)
	return nil
}
func (s *cachedStore) PutDirty(pageID uint32, old, n codec.Node, height int) error {
	s.buf.PutDirty(pageID, n)
	return nil
}
func (s *cachedStore) Delete(pageID uint32, height int) error {
	if err := s.src.WriteTombstone(pageID); err != nil {
		return err
	}
	s.buf.Evict(pageID)
	return nil
}

// fastStore drives a *fast.Buffer, diffing whole-node PutDirty images into
// FAST's granular per-entry deltas: common positions get a value-level
// ModBBox/ModPointer/ModLHV when they differ, trailing growth appends via
// ModBBox(position==len) then fills in the pointer/lhv, trailing shrink
// removes from the tail backward via ModBBox(present=false). This mirrors
// efind's own PutDirty diffing (DESIGN.md's rtree "open questions
// decided"): simple enough to be obviously correct, at the cost of not
// detecting a pure middle-of-array insert/delete as a single move.
type fastStore struct {
	buf  *fast.Buffer
	now  nowFunc
	kind codec.Kind
}

func (s *fastStore) Get(pageID uint32, height int) (codec.Node, error) {
	return s.buf.Retrieve(pageID, height)
}

func (s *fastStore) PutNew(pageID uint32, n codec.Node, height int) error {
	return s.buf.PutNew(pageID, n, height, s.now())
}

func (s *fastStore) PutDirty(pageID uint32, old, n codec.Node, height int) error {
	hilbertInt := s.kind == codec.HilbertTree && height > 0
	common := len(old.Entries)
	if len(n.Entries) < common {
		common = len(n.Entries)
	}
	for i := 0; i < common; i++ {
		oe, ne := old.Entries[i], n.Entries[i]
		if !oe.BBox.Equal(ne.BBox) {
			if err := s.buf.ModBBox(pageID, i, true, ne.BBox, height, s.now()); err != nil {
				return err
			}
		}
		if oe.Pointer != ne.Pointer {
			if err := s.buf.ModPointer(pageID, i, ne.Pointer, height, s.now()); err != nil {
				return err
			}
		}
		if hilbertInt && oe.LHV != ne.LHV {
			if err := s.buf.ModLHV(pageID, i, ne.LHV, height, s.now()); err != nil {
				return err
			}
		}
	}
	for i := common; i < len(n.Entries); i++ {
		ne := n.Entries[i]
		if err := s.buf.ModBBox(pageID, i, true, ne.BBox, height, s.now()); err != nil {
			return err
		}
		if ne.Pointer != 0 {
			if err := s.buf.ModPointer(pageID, i, ne.Pointer, height, s.now()); err != nil {
				return err
			}
		}
		if hilbertInt && ne.LHV != 0 {
			if err := s.buf.ModLHV(pageID, i, ne.LHV, height, s.now()); err != nil {
				return err
			}
		}
	}
	for i := len(old.Entries) - 1; i >= common; i-- {
		if err := s.buf.ModBBox(pageID, i, false, geom.BBox{}, height, s.now()); err != nil {
			return err
		}
	}
	return nil
}

func (s *fastStore) Delete(pageID uint32, height int) error {
	return s.buf.DelNode(pageID, height, s.now())
}

// efindStore drives a *efind.Buffer. Unlike FAST, eFIND exposes a whole-
// node PutNew/PutDirty surface directly, so no diffing lives here; it
// lives inside efind.Buffer.PutDirty itself.
type efindStore struct {
	buf *efind.Buffer
	now nowFunc
}

func (s *efindStore) Get(pageID uint32, height int) (codec.Node, error) {
	return s.buf.Retrieve(pageID, height)
}
func (s *efindStore) PutNew(pageID uint32, n codec.Node, height int) error {
	return s.buf.PutNew(pageID, n, height, s.now())
}
func (s *efindStore) PutDirty(pageID uint32, old, n codec.Node, height int) error {
	return s.buf.PutDirty(pageID, old, n, height, s.now())
}
func (s *efindStore) Delete(pageID uint32, height int) error {
	return s.buf.Delete(pageID, height, s.now())
}
