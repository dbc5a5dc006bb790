package rtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/treeinfo"
)

// memStore is a trivial in-memory NodeStore for exercising the tree core in
// isolation from any buffer manager.
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

func newTestTree(store *memStore, splitType SplitType) *Tree {
	info := treeinfo.New(1)
	store.nodes[1] = codec.Node{Kind: codec.RTree, Height: 0}
	cfg := Config{
		Dim: 2, Kind: codec.RTree,
		MinEntriesLeaf: 2, MaxEntriesLeaf: 4,
		MinEntriesInt: 2, MaxEntriesInt: 4,
		SplitType: splitType,
	}
	return New(store, info, cfg)
}

func TestInsertFiveTriggersRootSplit(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store, SplitQuadratic)

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Insert(uint32(i), box(float64(i)*10, float64(i)*10)))
	}

	require.Equal(t, 1, tr.info.Height())
	root, err := store.Get(tr.info.RootPageID(), tr.info.Height())
	require.NoError(t, err)
	require.Len(t, root.Entries, 2)

	for i := 0; i < 5; i++ {
		results, err := tr.Search(box(float64(i)*10, float64(i)*10), geom.Equal)
		require.NoError(t, err)
		require.Contains(t, results, uint32(i))
	}
}

func TestInsertThenRemoveDropsFromSearch(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store, SplitQuadratic)

	require.NoError(t, tr.Insert(1, box(0, 0)))
	require.NoError(t, tr.Insert(2, box(100, 100)))

	require.NoError(t, tr.Remove(1, box(0, 0)))

	results, err := tr.Search(box(0, 0), geom.Equal)
	require.NoError(t, err)
	require.NotContains(t, results, uint32(1))

	results, err = tr.Search(box(100, 100), geom.Equal)
	require.NoError(t, err)
	require.Contains(t, results, uint32(2))
}

func TestRemoveMissingEntryReturnsNotFound(t *testing.T) {
	store := newMemStore()
	tr := newTestTree(store, SplitQuadratic)
	require.NoError(t, tr.Insert(1, box(0, 0)))

	err := tr.Remove(99, box(5, 5))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRStarOverflowKeepsEntriesFindable(t *testing.T) {
	store := newMemStore()
	info := treeinfo.New(1)
	store.nodes[1] = codec.Node{Kind: codec.RStarTree, Height: 0}
	cfg := Config{
		Dim: 2, Kind: codec.RStarTree,
		MinEntriesLeaf: 2, MaxEntriesLeaf: 4,
		MinEntriesInt: 2, MaxEntriesInt: 4,
		SplitType:        SplitRStar,
		ReinsertPercLeaf: 0.3,
		ReinsertPercInt:  0.3,
	}
	tr := New(store, info, cfg)

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Insert(uint32(i), box(float64(i), float64(i))))
	}

	// Every inserted pointer must still be findable regardless of whether
	// a reinsert or an eventual split absorbed the overflow.
	for i := 0; i < 5; i++ {
		results, err := tr.Search(box(float64(i), float64(i)), geom.Equal)
		require.NoError(t, err)
		require.Contains(t, results, uint32(i))
	}
}

func TestHilbertSearchFindsAllInserted(t *testing.T) {
	store := newMemStore()
	info := treeinfo.New(1)
	store.nodes[1] = codec.Node{Kind: codec.HilbertTree, Height: 0}
	cfg := Config{
		Dim: 2, Kind: codec.HilbertTree,
		MinEntriesLeaf: 2, MaxEntriesLeaf: 4,
		MinEntriesInt: 2, MaxEntriesInt: 4,
		SplitType:    SplitQuadratic,
		HilbertOrder: 16,
		SpaceMin:     []float64{0, 0},
		SpaceMax:     []float64{1000, 1000},
	}
	tr := New(store, info, cfg)

	for i := 0; i < 9; i++ {
		require.NoError(t, tr.Insert(uint32(i), box(float64(i)*10, float64(i)*7)))
	}
	for i := 0; i < 9; i++ {
		results, err := tr.Search(box(float64(i)*10, float64(i)*7), geom.Equal)
		require.NoError(t, err)
		require.Contains(t, results, uint32(i))
	}
}

func TestSplitStrategiesRespectMinimumOccupancy(t *testing.T) {
	for _, st := range []SplitType{SplitQuadratic, SplitLinear, SplitGreene, SplitAngTan, SplitRStar, SplitExponential} {
		store := newMemStore()
		tr := newTestTree(store, st)
		for i := 0; i < 10; i++ {
			require.NoError(t, tr.Insert(uint32(i), box(float64(i)*3, float64(i)*2)), "split type %v", st)
		}
		for i := 0; i < 10; i++ {
			results, err := tr.Search(box(float64(i)*3, float64(i)*2), geom.Equal)
			require.NoError(t, err)
			require.Contains(t, results, uint32(i), "split type %v", st)
		}
		for id, n := range store.nodes {
			if id != tr.info.RootPageID() {
				require.GreaterOrEqual(t, len(n.Entries), 2, "split type %v page %d", st, id)
			}
		}
	}
}
