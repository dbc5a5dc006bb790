package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

type fakeSource struct {
	disk    map[uint32]codec.Node
	writes  []uint32
}

func newFakeSource() *fakeSource { return &fakeSource{disk: make(map[uint32]codec.Node)} }

func (f *fakeSource) ReadNode(pageID uint32, height int) (codec.Node, error) {
	n, ok := f.disk[pageID]
	if !ok {
		return codec.Node{Height: height}, nil
	}
	return n, nil
}

func (f *fakeSource) WriteNode(pageID uint32, n codec.Node) error {
	f.disk[pageID] = n
	f.writes = append(f.writes, pageID)
	return nil
}

func leafNode(ptr uint32) codec.Node {
	return codec.Node{Entries: []codec.Entry{{Pointer: ptr, BBox: geom.NewBBox([]float64{0, 0}, []float64{1, 1})}}}
}

func TestLRUEvictsAndWritesBackDirty(t *testing.T) {
	src := newFakeSource()
	l := NewLRU(src, 64, 2*(64+4)) // capacity 2 entries

	l.PutDirty(1, leafNode(1))
	l.PutDirty(2, leafNode(2))
	l.PutDirty(3, leafNode(3)) // evicts page 1

	require.Contains(t, src.writes, uint32(1))
	require.Equal(t, 2, l.Len())
}

func TestHLRURespectsLevelPredicate(t *testing.T) {
	src := newFakeSource()
	h := NewHLRU(src, 64, 3*(64+8))
	h.NotifyHeightChange(2)

	h.put(1, codec.Node{Height: 1}, false)
	h.put(2, codec.Node{Height: 2}, false)
	h.put(3, codec.Node{Height: 3}, false) // level exceeds current height

	// capacity 3, inserting a 4th at level 0 should evict the level-3
	// entry (exceeds current height) even though it's more recent than
	// page 1, whose level 1 is neither <= 0 nor above the current height.
	h.insert(4, codec.Node{Height: 0}, false, 0)

	_, ok := h.index[3]
	require.False(t, ok)
	_, ok = h.index[4]
	require.True(t, ok)
}

func TestS2QPromotesOnA1Hit(t *testing.T) {
	src := newFakeSource()
	s := NewS2Q(src, 64, 8*(64+4))

	_, err := s.Find(1, 0)
	require.NoError(t, err)
	_, ok := s.a1Index[1]
	require.True(t, ok)

	_, err = s.Find(1, 0)
	require.NoError(t, err)
	_, ok = s.amIndex[1]
	require.True(t, ok)
	_, ok = s.a1Index[1]
	require.False(t, ok)
}

func TestTwoQPromotesFromGhost(t *testing.T) {
	src := newFakeSource()
	q := NewTwoQ(src, 64, 12*(64+4))

	// Fill a1in past capacity to push an entry into the ghost list.
	for i := uint32(0); i < uint32(q.a1inMax)+1; i++ {
		_, err := q.Find(i, 0)
		require.NoError(t, err)
	}
	// The first inserted id should now be a ghost.
	_, isGhost := q.a1outIndex[0]
	require.True(t, isGhost)

	_, err := q.Find(0, 0)
	require.NoError(t, err)
	_, ok := q.amIndex[0]
	require.True(t, ok)
}
