package fortree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/treeinfo"
)

type memStore struct {
	nodes map[uint32]codec.Node
}

func newMemStore() *memStore { return &memStore{nodes: make(map[uint32]codec.Node)} }

func (m *memStore) Get(pageID uint32, height int) (codec.Node, error) {
	return m.nodes[pageID], nil
}
func (m *memStore) PutNew(pageID uint32, n codec.Node, height int) error {
	m.nodes[pageID] = n
	return nil
}
func (m *memStore) PutDirty(pageID uint32, old, n codec.Node, height int) error {
	m.nodes[pageID] = n
	return nil
}
func (m *memStore) Delete(pageID uint32, height int) error {
	delete(m.nodes, pageID)
	return nil
}

func box(x, y float64) geom.BBox {
	return geom.NewBBox([]float64{x, y}, []float64{x + 1, y + 1})
}

func newTestTree(store *memStore) *Tree {
	info := treeinfo.New(1)
	store.nodes[1] = codec.Node{Kind: codec.FORTree, Height: 0}
	cfg := Config{
		Dim: 2,
		MinEntriesLeaf: 2, MaxEntriesLeaf: 4,
		MinEntriesInt: 2, MaxEntriesInt: 4,
		X: 1, Y: 2,
	}
	return New(store, info, cfg)
}

func TestAddElementFillsPrimaryBeforeOverflowing(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store)

	for i := 0; i < 4; i++ {
		require.NoError(t, tr.AddElement(uint32(i), box(float64(i), float64(i))))
	}
	require.Len(t, store.nodes[1].Entries, 4)
	require.Empty(t, tr.overflow)

	require.NoError(t, tr.AddElement(4, box(4, 4)))
	require.Len(t, store.nodes[1].Entries, 4)
	require.NotEmpty(t, tr.overflow)

	for i := 0; i < 5; i++ {
		results, err := tr.Search(box(float64(i), float64(i)), geom.Equal)
		require.NoError(t, err)
		require.Contains(t, results, uint32(i))
	}
}

func TestMergeBackTriggersOnAccessPressure(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store)

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.AddElement(uint32(i), box(float64(i), float64(i))))
	}
	oe := tr.overflow[1]
	require.NotNil(t, oe)
	k := len(oe.pages)
	need := int(tr.threshold(k)) + 1
	for i := 0; i < need; i++ {
		_, err := tr.Search(box(0, 0), geom.Equal)
		require.NoError(t, err)
	}

	require.NoError(t, tr.AddElement(5, box(5, 5)))
	require.Nil(t, tr.overflow[1])

	for i := 0; i < 6; i++ {
		results, err := tr.Search(box(float64(i), float64(i)), geom.Equal)
		require.NoError(t, err)
		require.Contains(t, results, uint32(i))
	}
}

func TestRemoveFromPrimaryAndOverflow(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store)

	for i := 0; i < 6; i++ {
		require.NoError(t, tr.AddElement(uint32(i), box(float64(i), float64(i))))
	}

	require.NoError(t, tr.Remove(0, box(0, 0)))
	results, err := tr.Search(box(0, 0), geom.Equal)
	require.NoError(t, err)
	require.NotContains(t, results, uint32(0))

	for i := 1; i < 6; i++ {
		results, err := tr.Search(box(float64(i), float64(i)), geom.Equal)
		require.NoError(t, err)
		require.Contains(t, results, uint32(i))
	}
}

func TestRemoveMissingReturnsNotFound(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store)
	require.NoError(t, tr.AddElement(1, box(0, 0)))

	err := tr.Remove(99, box(9, 9))
	require.ErrorIs(t, err, ErrNotFound)
}
