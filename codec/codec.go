package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/intellect4all/geoindex/geom"
)

// Tombstone is the sentinel nofentries value marking a deleted page, per
// spec.md §4.2/§6.
const Tombstone uint32 = 0xFFFFFFFF

var (
	// ErrTombstone is returned by Deserialize when the page is a deleted
	// sentinel; callers treat this as "no live node at this page".
	ErrTombstone = errors.New("codec: page is a tombstone")
	// ErrShortBuffer is returned when buf is too small for the declared
	// entry count.
	ErrShortBuffer = errors.New("codec: buffer too small for node")
)

func entrySize(dim int, hilbertInternal bool) int {
	sz := 4 + 2*dim*8 // pointer + bbox
	if hilbertInternal {
		sz += 8 // lhv
	}
	return sz
}

// NodeSize returns the number of bytes a node with nofentries entries
// occupies, for the given dimension and tree kind/height.
func NodeSize(dim int, kind Kind, height int, nofentries int) int {
	return 4 + nofentries*entrySize(dim, isHilbertInternal(kind, height))
}

func isHilbertInternal(kind Kind, height int) bool {
	return kind == HilbertTree && height > 0
}

// Serialize writes n into buf using little-endian encoding. buf must be at
// least NodeSize(dim, n.Kind, n.Height, len(n.Entries)) bytes.
func Serialize(n Node, dim int, buf []byte) error {
	hilbert := isHilbertInternal(n.Kind, n.Height)
	need := NodeSize(dim, n.Kind, n.Height, len(n.Entries))
	if len(buf) < need {
		return ErrShortBuffer
	}

	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(n.Entries)))
	off := 4
	es := entrySize(dim, hilbert)
	for _, e := range n.Entries {
		binary.LittleEndian.PutUint32(buf[off:off+4], e.Pointer)
		p := off + 4
		for i := 0; i < dim; i++ {
			binary.LittleEndian.PutUint64(buf[p:p+8], math.Float64bits(e.BBox.Min[i]))
			p += 8
		}
		for i := 0; i < dim; i++ {
			binary.LittleEndian.PutUint64(buf[p:p+8], math.Float64bits(e.BBox.Max[i]))
			p += 8
		}
		if hilbert {
			binary.LittleEndian.PutUint64(buf[p:p+8], e.LHV)
		}
		off += es
	}
	return nil
}

// SerializeTombstone writes the deleted-page sentinel into buf.
func SerializeTombstone(buf []byte) error {
	if len(buf) < 4 {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint32(buf[0:4], Tombstone)
	return nil
}

// Deserialize reads a node of the given kind/height out of buf. Callers
// that don't yet know a page's height (e.g. cold reads before consulting
// tree-info) must supply it out of band; the wire format itself does not
// carry height, matching spec.md §6.
func Deserialize(buf []byte, dim int, kind Kind, height int) (Node, error) {
	if len(buf) < 4 {
		return Node{}, ErrShortBuffer
	}
	nof := binary.LittleEndian.Uint32(buf[0:4])
	if nof == Tombstone {
		return Node{}, ErrTombstone
	}

	hilbert := isHilbertInternal(kind, height)
	es := entrySize(dim, hilbert)
	need := 4 + int(nof)*es
	if len(buf) < need {
		return Node{}, fmt.Errorf("%w: need %d have %d", ErrShortBuffer, need, len(buf))
	}

	entries := make([]Entry, nof)
	off := 4
	for i := range entries {
		ptr := binary.LittleEndian.Uint32(buf[off : off+4])
		p := off + 4
		min := make([]float64, dim)
		max := make([]float64, dim)
		for d := 0; d < dim; d++ {
			min[d] = math.Float64frombits(binary.LittleEndian.Uint64(buf[p : p+8]))
			p += 8
		}
		for d := 0; d < dim; d++ {
			max[d] = math.Float64frombits(binary.LittleEndian.Uint64(buf[p : p+8]))
			p += 8
		}
		var lhv uint64
		if hilbert {
			lhv = binary.LittleEndian.Uint64(buf[p : p+8])
		}
		entries[i] = Entry{Pointer: ptr, BBox: geom.BBox{Min: min, Max: max}, LHV: lhv}
		off += es
	}

	return Node{Kind: kind, Height: height, Entries: entries}, nil
}
