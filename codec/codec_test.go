package codec

import (
	"testing"

	"github.com/intellect4all/geoindex/geom"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	n := Node{
		Kind:   RTree,
		Height: 0,
		Entries: []Entry{
			{Pointer: 1, BBox: geom.NewBBox([]float64{0, 0}, []float64{1, 1})},
			{Pointer: 2, BBox: geom.NewBBox([]float64{2, 2}, []float64{3, 3})},
		},
	}
	buf := make([]byte, NodeSize(2, n.Kind, n.Height, len(n.Entries)))
	require.NoError(t, Serialize(n, 2, buf))

	got, err := Deserialize(buf, 2, RTree, 0)
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestSerializeDeserializeHilbertInternal(t *testing.T) {
	n := Node{
		Kind:   HilbertTree,
		Height: 1,
		Entries: []Entry{
			{Pointer: 10, BBox: geom.NewBBox([]float64{0, 0}, []float64{1, 1}), LHV: 42},
			{Pointer: 11, BBox: geom.NewBBox([]float64{1, 1}, []float64{2, 2}), LHV: 99},
		},
	}
	buf := make([]byte, NodeSize(2, n.Kind, n.Height, len(n.Entries)))
	require.NoError(t, Serialize(n, 2, buf))

	got, err := Deserialize(buf, 2, HilbertTree, 1)
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestTombstoneRejected(t *testing.T) {
	buf := make([]byte, 4)
	require.NoError(t, SerializeTombstone(buf))

	_, err := Deserialize(buf, 2, RTree, 0)
	require.ErrorIs(t, err, ErrTombstone)
}

func TestShortBufferRejected(t *testing.T) {
	n := Node{Kind: RTree, Entries: []Entry{{Pointer: 1, BBox: geom.NewBBox([]float64{0, 0}, []float64{1, 1})}}}
	buf := make([]byte, 4)
	require.ErrorIs(t, Serialize(n, 2, buf), ErrShortBuffer)
}
