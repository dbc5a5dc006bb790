package fast

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/wal"
)

// Recover replays log's surviving records (those not covered by a later
// FLUSH) through the public mutation API into a fresh Buffer, per spec.md
// §4.10 "Recovery". The caller must have opened log with
// BodyLengthFunc(cfg.Dim, cfg.Kind).
func Recover(src Source, log *wal.Log, cfg Config, zlog *zap.Logger) (*Buffer, error) {
	b, err := New(src, log, cfg, zlog)
	if err != nil {
		return nil, err
	}
	if log.LastOffset() < 0 {
		return b, nil
	}

	r, err := log.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	flushed := make(map[uint32]bool)
	var reverseOrder []wal.Record

	err = wal.WalkReverse(r, log.LastOffset(), func(rec wal.Record) bool {
		if rec.Tag == tagFlush {
			for _, id := range decodeFlush(rec.Body) {
				flushed[id] = true
			}
			return true
		}
		if !flushed[binary.LittleEndian.Uint32(rec.Body[0:4])] {
			reverseOrder = append(reverseOrder, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	for i := len(reverseOrder) - 1; i >= 0; i-- {
		rec := reverseOrder[i]
		if err := b.replay(rec.Tag, rec.Body); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// replay re-applies one surviving record directly against the in-RAM
// state without re-appending to the WAL (the record already lives there).
func (b *Buffer) replay(tag byte, body []byte) error {
	switch tag {
	case tagNew:
		pageID, height, n, err := decodeNew(body, b.cfg.Dim, b.cfg.Kind)
		if err != nil {
			return err
		}
		b.entries[pageID] = &Entry{Status: StatusNew, Height: height, Node: n}
		b.touch(pageID, 0)
	case tagMod:
		pageID, height, d, present := decodeMod(body, b.cfg.Dim)
		b.applyDelta(pageID, height, d, present)
		b.touch(pageID, 0)
	case tagDel:
		pageID, height := decodeDel(body)
		b.entries[pageID] = &Entry{Status: StatusDel, Height: height}
		b.touch(pageID, 0)
	}
	return nil
}
