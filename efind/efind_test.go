package efind

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

func openLog(t *testing.T, dim int) *wal.Log {
	t.Helper()
	l, err := wal.Open(filepath.Join(t.TempDir(), "efind.wal"), 0, BodyLengthFunc(dim), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func baseCfg() Config {
	return Config{
		Dim:             2,
		Kind:            codec.RTree,
		PageSize:        64,
		WriteBufferSize: 8,
		MinFlushSize:    2,
		ReadBufferCapacityBytes: 4096,
	}
}

func TestPutNewReconstructsFromDeltasAlone(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2)
	b, err := New(src, log, baseCfg(), nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	got, err := b.Retrieve(1, 0)
	require.NoError(t, err)
	require.Equal(t, rect(0).Entries[0].Pointer, got.Entries[0].Pointer)
	// disk must stay empty until flush.
	require.Empty(t, src.disk)
}

func TestPutDirtyDiffsMinimalDeltas(t *testing.T) {
	src := newFakeSource()
	src.disk[1] = rect(0)
	log := openLog(t, 2)
	b, err := New(src, log, baseCfg(), nil)
	require.NoError(t, err)

	old := rect(0)
	newNode := rect(0)
	newBox := geom.NewBBox([]float64{5, 5}, []float64{6, 6})
	newNode.Entries[0].BBox = newBox

	require.NoError(t, b.PutDirty(1, old, newNode, 0, 1))
	e := b.entries[1]
	require.Len(t, e.Deltas, 1)
	require.Equal(t, DeltaModBBox, e.Deltas[0].Kind)

	got, err := b.Retrieve(1, 0)
	require.NoError(t, err)
	require.Equal(t, newBox, got.Entries[0].BBox)
	// disk copy itself must be untouched until flush.
	require.Equal(t, rect(0).Entries[0].BBox, src.disk[1].Entries[0].BBox)
}

func TestDeleteThenRetrieveErrors(t *testing.T) {
	src := newFakeSource()
	log := openLog(t, 2)
	b, err := New(src, log, baseCfg(), nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.Delete(1, 0, 2))

	_, err = b.Retrieve(1, 0)
	require.ErrorIs(t, err, ErrDeletedPage)
}

func TestFlushWritesBackAndDropsFromBuffer(t *testing.T) {
	src := newFakeSource()
	cfg := baseCfg()
	cfg.MinFlushSize = 2
	log := openLog(t, 2)
	b, err := New(src, log, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.PutNew(2, rect(1), 0, 2))

	ids, err := b.Flush()
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	for _, id := range ids {
		require.Contains(t, src.wrote, id)
	}
}

func TestFlushAllDrainsEntireBuffer(t *testing.T) {
	src := newFakeSource()
	cfg := baseCfg()
	cfg.MinFlushSize = 1
	log := openLog(t, 2)
	b, err := New(src, log, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.PutNew(2, rect(1), 0, 2))
	require.NoError(t, b.PutNew(3, rect(2), 0, 3))

	require.NoError(t, b.FlushAll())
	require.Equal(t, 0, b.Len())
	require.ElementsMatch(t, []uint32{1, 2, 3}, src.wrote)
}

func TestRecoverReplaysSurvivingRecords(t *testing.T) {
	src := newFakeSource()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "efind.wal")

	log, err := wal.Open(logPath, 0, BodyLengthFunc(2), nil)
	require.NoError(t, err)
	cfg := baseCfg()
	cfg.MinFlushSize = 1
	b, err := New(src, log, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(1, rect(0), 0, 1))
	require.NoError(t, b.PutNew(2, rect(1), 0, 2))
	flushed, err := b.Flush()
	require.NoError(t, err)
	require.NotEmpty(t, flushed)
	require.NoError(t, log.Close())

	log2, err := wal.Open(logPath, 0, BodyLengthFunc(2), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log2.Close() })

	recovered, err := Recover(src, log2, cfg, nil)
	require.NoError(t, err)

	survivors := 2 - len(flushed)
	require.Equal(t, survivors, recovered.Len())
}

func TestNotifyHeightChangePropagatesToHLRU(t *testing.T) {
	src := newFakeSource()
	cfg := baseCfg()
	cfg.ReadBufferKind = ReadHLRU
	log := openLog(t, 2)
	b, err := New(src, log, cfg, nil)
	require.NoError(t, err)
	require.NotPanics(t, func() { b.NotifyHeightChange(3) })
}

func TestSequentialGroupingExtendsFlushSetToContiguousNeighbors(t *testing.T) {
	src := newFakeSource()
	cfg := baseCfg()
	cfg.MinFlushSize = 1
	cfg.GroupingMode = Sequential
	log := openLog(t, 2)
	b, err := New(src, log, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, b.PutNew(5, rect(0), 0, 1))
	require.NoError(t, b.PutNew(6, rect(1), 0, 1))
	require.NoError(t, b.PutDirty(6, rect(1), rect(1), 0, 9)) // bump mod count on 6

	set := b.selectFlushSet()
	require.Contains(t, set, uint32(5))
	require.Contains(t, set, uint32(6))
}
