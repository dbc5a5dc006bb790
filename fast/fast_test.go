package fast

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/wal"
)

type fakeSource struct {
	disk  map[uint32]codec.Node
	wrote []uint32
}

func newFakeSource() *fakeSource { return &fakeSource{disk: make(map[uint32]codec.Node)} }

func (f *fakeSource) ReadNode(pageID uint32, height int) (codec.Node, error) {
	return f.disk[pageID], nil
}

func (f *fakeSource) WriteNode(pageID uint32, n codec.Node) error {
	f.disk[pageID] = n.Clone()
	f.wrote = append(f.wrote, pageID)
	return nil
}

func rect(x float64) codec.Node {
	return codec.Node{Entries: []codec.Entry{{Pointer: 1, BBox: geom.NewBBox([]float64{x, x}, []float64{x + 1, x + 1})}}}
}

func openLog(t *testing.T, dim int, kind codec.Kind) *wal.Log {
	t.Helper()
	l, err := wal.Open(filepath.Join(t.TempDir(), "fast.wal"), 0, BodyLengthFunc(dim, kind), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestPutNewThenRetrieveReturnsClone(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 2}, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	got, err := b.Retrieve(1, 0)
	require.NoError(t, err)
	require.Equal(t, rect(0).Entries[0].Pointer, got.Entries[0].Pointer)
}

func TestModBBoxOnNewAppliesDirectly(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 2}, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	newBox := geom.NewBBox([]float64{5, 5}, []float64{6, 6})
	require.NoError(t, b.ModBBox(1, 0, true, newBox, 0, 2))

	got, err := b.Retrieve(1, 0)
	require.NoError(t, err)
	require.Equal(t, newBox, got.Entries[0].BBox)
}

func TestModOnAbsentPageBuildsDeltaListReplayedOverDisk(t *testing.T) {
	src := newFakeSource()
	src.disk[1] = rect(0)
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 2}, nil)
	require.NoError(t, err)

	newBox := geom.NewBBox([]float64{9, 9}, []float64{10, 10})
	require.NoError(t, b.ModBBox(1, 0, true, newBox, 0, 1))

	got, err := b.Retrieve(1, 0)
	require.NoError(t, err)
	require.Equal(t, newBox, got.Entries[0].BBox)
	// disk copy itself must be untouched until flush.
	require.Equal(t, rect(0).Entries[0].BBox, src.disk[1].Entries[0].BBox)
}

func TestDelNodeThenRetrieveErrors(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 2}, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.DelNode(1, 0, 2))

	_, err = b.Retrieve(1, 0)
	require.ErrorIs(t, err, ErrDeletedPage)
}

func TestFlushAllPolicyWritesBackAndDropsFromBuffer(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 2, Policy: FlushAllPolicy}, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.PutNew(2, rect(1), 0, 2))

	ids, err := b.Flush()
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 2}, ids)
	require.Equal(t, 0, b.Len())
	require.Contains(t, src.wrote, uint32(1))
	require.Contains(t, src.wrote, uint32(2))
}

func TestFASTPolicyPicksHighestModCountUnit(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 1, Policy: FASTPolicy}, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.PutNew(2, rect(1), 0, 2))
	// touch page 2 again so its unit has more mods.
	require.NoError(t, b.ModPointer(2, 0, 42, 0, 3))

	ids, err := b.Flush()
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, ids)
}

func TestRecoverReplaysSurvivingRecords(t *testing.T) {
	src := newFakeSource()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "fast.wal")

	log, err := wal.Open(logPath, 0, BodyLengthFunc(2, codec.RTree), nil)
	require.NoError(t, err)
	cfg := Config{Dim: 2, Kind: codec.RTree, PageSize: 64, FlushingUnitSize: 1}
	b, err := New(src, log, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.PutNew(2, rect(1), 0, 2))
	flushed, err := b.Flush() // flushes page 1's unit (first created)
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, flushed)
	require.NoError(t, log.Close())

	log2, err := wal.Open(logPath, 0, BodyLengthFunc(2, codec.RTree), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log2.Close() })

	recovered, err := Recover(src, log2, cfg, nil)
	require.NoError(t, err)
	// page 1 was flushed and must not reappear; page 2 should still be
	// resident as NEW.
	require.Equal(t, 1, recovered.Len())
	got, err := recovered.Retrieve(2, 0)
	require.NoError(t, err)
	require.Equal(t, rect(1).Entries[0].Pointer, got.Entries[0].Pointer)
}

func TestCapacityRefusedBypassesBuffer(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2, codec.RTree)
	b, err := New(src, log, Config{Dim: 2, Kind: codec.RTree, PageSize: 64, MaxCapacity: 1}, nil)
	require.NoError(t, err)
	require.True(t, b.Bypassed())

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.Equal(t, 0, b.Len())
	require.Contains(t, src.wrote, uint32(1))
}
