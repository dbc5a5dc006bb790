package fast

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/wal"
)

// WAL record tags, spec.md §6 "WAL record format (FAST)".
const (
	tagNew   byte = 'N'
	tagMod   byte = 'M'
	tagDel   byte = 'D'
	tagFlush byte = 'F'
)

// BodyLengthFunc implements wal.BodyLengthFunc for the FAST record bodies.
// kind is the tree kind this buffer is bound to (Hilbert internal entries
// carry a trailing LHV field the record length must account for).
func BodyLengthFunc(dim int, kind codec.Kind) wal.BodyLengthFunc {
	return func(f *os.File, bodyStart int64, tag byte) (int, error) {
		switch tag {
		case tagNew:
			var hdr [12]byte // page(4) height(4) nofentries(4)
			if _, err := f.ReadAt(hdr[:], bodyStart); err != nil {
				return 0, err
			}
			recHeight := int(int32(binary.LittleEndian.Uint32(hdr[4:8])))
			nof := binary.LittleEndian.Uint32(hdr[8:12])
			return 8 + codec.NodeSize(dim, kind, recHeight, int(nof)), nil
		case tagMod:
			var hdr [9]byte // page(4) height(4) kind(1)
			if _, err := f.ReadAt(hdr[:], bodyStart); err != nil {
				return 0, err
			}
			kind := DeltaKind(hdr[8])
			switch kind {
			case DeltaBBox:
				var present [1]byte
				if _, err := f.ReadAt(present[:], bodyStart+13); err != nil {
					return 0, err
				}
				if present[0] == 0 {
					return 13 + 1, nil
				}
				return 13 + 1 + 2*dim*8, nil
			case DeltaPointer:
				return 13 + 4, nil
			case DeltaLHV:
				return 13 + 8, nil
			case DeltaHole:
				return 13, nil
			default:
				return 0, fmt.Errorf("fast: unknown delta kind %d", kind)
			}
		case tagDel:
			return 8, nil
		case tagFlush:
			var hdr [4]byte
			if _, err := f.ReadAt(hdr[:], bodyStart); err != nil {
				return 0, err
			}
			n := binary.LittleEndian.Uint32(hdr[:])
			return 4 + int(n)*4, nil
		default:
			return 0, fmt.Errorf("fast: unknown record tag %q", tag)
		}
	}
}

// encodeNew builds the body "i32 page | i32 height | serialized_node".
func encodeNew(pageID uint32, height, dim int, n codec.Node) []byte {
	body := make([]byte, 8+codec.NodeSize(dim, n.Kind, n.Height, len(n.Entries)))
	binary.LittleEndian.PutUint32(body[0:4], pageID)
	binary.LittleEndian.PutUint32(body[4:8], uint32(height))
	_ = codec.Serialize(n, dim, body[8:])
	return body
}

func decodeNew(body []byte, dim int, kind codec.Kind) (pageID uint32, height int, n codec.Node, err error) {
	pageID = binary.LittleEndian.Uint32(body[0:4])
	height = int(int32(binary.LittleEndian.Uint32(body[4:8])))
	n, err = codec.Deserialize(body[8:], dim, kind, height)
	return
}

// encodeMod builds a MOD body: "i32 page | i32 height | u8 kind | u32
// position | kind-specific payload".
func encodeMod(pageID uint32, height int, kind DeltaKind, position int, present bool, bbox geom.BBox, ptr uint32, lhv uint64) []byte {
	header := make([]byte, 13)
	binary.LittleEndian.PutUint32(header[0:4], pageID)
	binary.LittleEndian.PutUint32(header[4:8], uint32(height))
	header[8] = byte(kind)
	binary.LittleEndian.PutUint32(header[9:13], uint32(position))

	switch kind {
	case DeltaBBox:
		if !present {
			return append(header, 0)
		}
		dim := len(bbox.Min)
		tail := make([]byte, 1+2*dim*8)
		tail[0] = 1
		off := 1
		for i := 0; i < dim; i++ {
			binary.LittleEndian.PutUint64(tail[off:off+8], math.Float64bits(bbox.Min[i]))
			off += 8
		}
		for i := 0; i < dim; i++ {
			binary.LittleEndian.PutUint64(tail[off:off+8], math.Float64bits(bbox.Max[i]))
			off += 8
		}
		return append(header, tail...)
	case DeltaPointer:
		tail := make([]byte, 4)
		binary.LittleEndian.PutUint32(tail, ptr)
		return append(header, tail...)
	case DeltaLHV:
		tail := make([]byte, 8)
		binary.LittleEndian.PutUint64(tail, lhv)
		return append(header, tail...)
	default: // DeltaHole
		return header
	}
}

func decodeMod(body []byte, dim int) (pageID uint32, height int, d Delta, present bool) {
	pageID = binary.LittleEndian.Uint32(body[0:4])
	height = int(int32(binary.LittleEndian.Uint32(body[4:8])))
	kind := DeltaKind(body[8])
	position := int(binary.LittleEndian.Uint32(body[9:13]))
	d = Delta{Kind: kind, Position: position}
	switch kind {
	case DeltaBBox:
		present = body[13] != 0
		if present {
			off := 14
			min := make([]float64, dim)
			max := make([]float64, dim)
			for i := 0; i < dim; i++ {
				min[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[off : off+8]))
				off += 8
			}
			for i := 0; i < dim; i++ {
				max[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[off : off+8]))
				off += 8
			}
			d.BBox = geom.BBox{Min: min, Max: max}
		}
	case DeltaPointer:
		present = true
		d.Pointer = binary.LittleEndian.Uint32(body[13:17])
	case DeltaLHV:
		present = true
		d.LHV = binary.LittleEndian.Uint64(body[13:21])
	case DeltaHole:
		present = false
	}
	return
}

func encodeDel(pageID uint32, height int) []byte {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], pageID)
	binary.LittleEndian.PutUint32(body[4:8], uint32(height))
	return body
}

func decodeDel(body []byte) (pageID uint32, height int) {
	pageID = binary.LittleEndian.Uint32(body[0:4])
	height = int(int32(binary.LittleEndian.Uint32(body[4:8])))
	return
}

func encodeFlush(pageIDs []uint32) []byte {
	body := make([]byte, 4+4*len(pageIDs))
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(pageIDs)))
	for i, id := range pageIDs {
		binary.LittleEndian.PutUint32(body[4+4*i:8+4*i], id)
	}
	return body
}

func decodeFlush(body []byte) []uint32 {
	n := binary.LittleEndian.Uint32(body[0:4])
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(body[4+4*i : 8+4*i])
	}
	return ids
}
