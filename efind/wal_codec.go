package efind

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/wal"
)

const (
	tagNew   byte = 'n'
	tagMod   byte = 'm'
	tagDel   byte = 'd'
	tagFlush byte = 'f'
)

// recordHeaderLen is page(4) | height(4) | kind(1) | position(4).
const recordHeaderLen = 4 + 4 + 1 + 4

// encodeRecord frames one write-buffer mutation, SPEC_FULL.md §4.8 "body
// carries page, height, and an entry-level payload (present flag + entry)".
func encodeRecord(tag byte, pageID uint32, height int, d Delta) []byte {
	if tag == tagDel {
		body := make([]byte, 8)
		binary.LittleEndian.PutUint32(body[0:4], pageID)
		binary.LittleEndian.PutUint32(body[4:8], uint32(height))
		return body
	}

	body := make([]byte, recordHeaderLen)
	binary.LittleEndian.PutUint32(body[0:4], pageID)
	binary.LittleEndian.PutUint32(body[4:8], uint32(height))
	body[8] = byte(d.Kind)
	binary.LittleEndian.PutUint32(body[9:13], uint32(d.Position))

	switch d.Kind {
	case DeltaInsert:
		body = append(body, byte(1))
		body = append(body, encodeEntry(d.Entry)...)
	case DeltaModBBox:
		body = append(body, encodeBBox(d.BBox)...)
	case DeltaModPointer:
		tail := make([]byte, 4)
		binary.LittleEndian.PutUint32(tail, d.Pointer)
		body = append(body, tail...)
	case DeltaModLHV:
		tail := make([]byte, 8)
		binary.LittleEndian.PutUint64(tail, d.LHV)
		body = append(body, tail...)
	case DeltaDeleteEntry:
		// no further payload
	}
	return body
}

func encodeEntry(e codec.Entry) []byte {
	out := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(out[0:4], e.Pointer)
	binary.LittleEndian.PutUint64(out[4:12], e.LHV)
	return append(out, encodeBBox(e.BBox)...)
}

func encodeBBox(b geom.BBox) []byte {
	dim := b.Dim()
	out := make([]byte, 4+dim*8*2)
	binary.LittleEndian.PutUint32(out[0:4], uint32(dim))
	off := 4
	for _, v := range b.Min {
		binary.LittleEndian.PutUint64(out[off:off+8], math.Float64bits(v))
		off += 8
	}
	for _, v := range b.Max {
		binary.LittleEndian.PutUint64(out[off:off+8], math.Float64bits(v))
		off += 8
	}
	return out
}

// decodeRecord reverses encodeRecord, used by Recover's forward replay.
func decodeRecord(tag byte, body []byte) (pageID uint32, height int, d Delta) {
	pageID = binary.LittleEndian.Uint32(body[0:4])
	height = int(binary.LittleEndian.Uint32(body[4:8]))
	if tag == tagDel {
		return pageID, height, Delta{}
	}
	d.Kind = DeltaKind(body[8])
	d.Position = int(binary.LittleEndian.Uint32(body[9:13]))
	tail := body[recordHeaderLen:]
	switch d.Kind {
	case DeltaInsert:
		d.Entry = decodeEntry(tail[1:])
	case DeltaModBBox:
		d.BBox = decodeBBox(tail)
	case DeltaModPointer:
		d.Pointer = binary.LittleEndian.Uint32(tail)
	case DeltaModLHV:
		d.LHV = binary.LittleEndian.Uint64(tail)
	}
	return pageID, height, d
}

func decodeEntry(b []byte) codec.Entry {
	pointer := binary.LittleEndian.Uint32(b[0:4])
	lhv := binary.LittleEndian.Uint64(b[4:12])
	bbox := decodeBBox(b[12:])
	return codec.Entry{Pointer: pointer, LHV: lhv, BBox: bbox}
}

func decodeBBox(b []byte) geom.BBox {
	dim := int(binary.LittleEndian.Uint32(b[0:4]))
	off := 4
	min := make([]float64, dim)
	max := make([]float64, dim)
	for i := 0; i < dim; i++ {
		min[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
		off += 8
	}
	for i := 0; i < dim; i++ {
		max[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
		off += 8
	}
	return geom.NewBBox(min, max)
}

// BodyLengthFunc implements wal.BodyLengthFunc for eFIND's record bodies,
// parameterized by the fixed dimension deltas are encoded against.
func BodyLengthFunc(dim int) wal.BodyLengthFunc {
	bboxLen := 4 + dim*8*2
	return func(f *os.File, bodyStart int64, tag byte) (int, error) {
		switch tag {
		case tagDel:
			return 8, nil
		case tagFlush:
			var hdr [4]byte
			if _, err := f.ReadAt(hdr[:], bodyStart); err != nil {
				return 0, err
			}
			count := int(binary.LittleEndian.Uint32(hdr[:]))
			return 4 + count*4, nil
		case tagNew, tagMod:
			hdr := make([]byte, recordHeaderLen)
			if _, err := f.ReadAt(hdr, bodyStart); err != nil {
				return 0, err
			}
			kind := DeltaKind(hdr[8])
			switch kind {
			case DeltaInsert:
				return recordHeaderLen + 1 + 12 + bboxLen, nil
			case DeltaModBBox:
				return recordHeaderLen + bboxLen, nil
			case DeltaModPointer:
				return recordHeaderLen + 4, nil
			case DeltaModLHV:
				return recordHeaderLen + 8, nil
			default: // DeltaDeleteEntry
				return recordHeaderLen, nil
			}
		default:
			return 0, fmt.Errorf("efind: unknown record tag %q", tag)
		}
	}
}

func encodeFlush(ids []uint32) []byte {
	out := make([]byte, 4+len(ids)*4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(ids)))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(out[4+i*4:8+i*4], id)
	}
	return out
}

func decodeFlush(body []byte) []uint32 {
	count := int(binary.LittleEndian.Uint32(body[0:4]))
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = binary.LittleEndian.Uint32(body[4+i*4 : 8+i*4])
	}
	return out
}
