package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/geoindex/fast"
	"github.com/intellect4all/geoindex/geom"
)

// box is a trivial geom.Geometry whose MBR is itself, for driving the
// façade's Geometry-typed Insert/Remove/Search without a real spatial
// object model.
type box geom.BBox

func (b box) MBR() geom.BBox { return geom.BBox(b) }

func rect(x, y float64) box {
	return box(geom.NewBBox([]float64{x, y}, []float64{x + 1, y + 1}))
}

func baseConfig(tree TreeKind, buf BufferKind) Config {
	return Config{
		Dim: 2, Tree: tree, Buffer: buf, PageSize: 256,
		MinEntriesLeaf: 2, MaxEntriesLeaf: 4,
		MinEntriesInt: 2, MaxEntriesInt: 4,
		SplitType:           0,
		BufferCapacityBytes: 4096,
		FASTFlushingUnitSize: 2,
		FASTPolicy:           fast.FlushAllPolicy,
		EFINDWriteBufferSize: 4,
		EFINDMinFlushSize:    2,
		ForX:                 1,
		ForY:                 1,
		LogSize:              0,
	}
}

func newFacade(t *testing.T, cfg Config) *SpatialIndex {
	t.Helper()
	dir := t.TempDir()
	idx, err := New(cfg, filepath.Join(dir, "data.bin"), filepath.Join(dir, "header.yaml"), filepath.Join(dir, "wal.log"), nil, nil)
	require.NoError(t, err)
	return idx
}

func TestInsertSearchRemoveRTreeNoBuffer(t *testing.T) {
	idx := newFacade(t, baseConfig(RTreeKind, NoBuffer))
	require.Equal(t, RTreeKind, idx.GetType())

	for i := 0; i < 8; i++ {
		require.NoError(t, idx.Insert(uint32(i), rect(float64(i)*10, float64(i)*10)))
	}

	got, err := idx.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(0))

	require.NoError(t, idx.Remove(0, rect(0, 0)))
	got, err = idx.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.NotContains(t, got, uint32(0))
}

func TestInsertSearchRStarTreeLRUBuffer(t *testing.T) {
	idx := newFacade(t, baseConfig(RStarTreeKind, LRUBuffer))
	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Insert(uint32(i), rect(float64(i)*5, float64(i)*5)))
	}
	got, err := idx.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(0))
}

func TestFORTreeNoneBuffer(t *testing.T) {
	idx := newFacade(t, baseConfig(FORTreeKind, NoBuffer))
	for i := 0; i < 12; i++ {
		require.NoError(t, idx.Insert(uint32(i), rect(float64(i)*3, float64(i)*3)))
	}
	got, err := idx.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(0))
}

func TestRTreeFASTBufferFlush(t *testing.T) {
	idx := newFacade(t, baseConfig(RTreeKind, FASTBuffer))
	for i := 0; i < 6; i++ {
		require.NoError(t, idx.Insert(uint32(i), rect(float64(i)*10, float64(i)*10)))
	}
	_, err := idx.Flush()
	require.NoError(t, err)

	got, err := idx.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(0))
}

func TestHilbertEFINDBufferFlushAll(t *testing.T) {
	cfg := baseConfig(HilbertTreeKind, EFINDBuffer)
	cfg.HilbertOrder = 16
	cfg.SpaceMin = []float64{0, 0}
	cfg.SpaceMax = []float64{1000, 1000}
	idx := newFacade(t, cfg)
	for i := 0; i < 6; i++ {
		require.NoError(t, idx.Insert(uint32(i), rect(float64(i)*10, float64(i)*10)))
	}
	require.NoError(t, idx.FlushAll())

	got, err := idx.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(0))
}

func TestUpdateSurfacesPartialFailure(t *testing.T) {
	idx := newFacade(t, baseConfig(RTreeKind, NoBuffer))
	require.NoError(t, idx.Insert(1, rect(0, 0)))

	err := idx.Update(1, rect(0, 0), 2, rect(100, 100))
	require.NoError(t, err)

	got, err := idx.Search(rect(100, 100), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(2))

	// removing something that was never there surfaces as the remove half.
	err = idx.Update(999, rect(0, 0), 3, rect(1, 1))
	require.Error(t, err)
}

func TestWriteHeaderAndReopen(t *testing.T) {
	dir := t.TempDir()
	backing := filepath.Join(dir, "data.bin")
	header := filepath.Join(dir, "header.yaml")
	logPath := filepath.Join(dir, "wal.log")

	cfg := baseConfig(RTreeKind, NoBuffer)
	idx, err := New(cfg, backing, header, logPath, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Insert(uint32(i), rect(float64(i)*10, float64(i)*10)))
	}
	require.NoError(t, idx.WriteHeader(header))
	require.NoError(t, idx.store.Close())

	reopened, err := Open(header, backing, logPath, nil, nil)
	require.NoError(t, err)
	got, err := reopened.Search(rect(0, 0), geom.Intersects)
	require.NoError(t, err)
	require.Contains(t, got, uint32(0))
}

func TestDestroyRemovesBackingFiles(t *testing.T) {
	idx := newFacade(t, baseConfig(RTreeKind, NoBuffer))
	require.NoError(t, idx.Insert(1, rect(0, 0)))
	require.NoError(t, idx.Destroy())
}
