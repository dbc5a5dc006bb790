package efind

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/wal"
)

// Recover replays log's surviving records (those not covered by a later
// FLUSH) directly into a fresh Buffer's write buffer, SPEC_FULL.md §4.8
// "recovery via reverse-scan-then-forward-replay". The caller must have
// opened log with BodyLengthFunc(cfg.Dim).
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
		b.replay(rec.Tag, rec.Body)
	}
	return b, nil
}

// replay re-applies one surviving record against in-RAM state without
// re-appending to the WAL (the record already lives there).
func (b *Buffer) replay(tag byte, body []byte) {
	pageID, height, d := decodeRecord(tag, body)
	_, existed := b.entries[pageID]
	e := b.ensureEntry(pageID, height)
	switch tag {
	case tagNew:
		if e.Status != StatusNew {
			e.Status = StatusNew
			e.Deltas = nil
		}
		e.Deltas = append(e.Deltas, d)
	case tagMod:
		if !existed || e.Status != StatusNew {
			e.Status = StatusMod
		}
		e.Deltas = append(e.Deltas, d)
	case tagDel:
		e.Status = StatusDel
		e.Deltas = nil
	}
	e.Height = height
	b.touch(e, 0)
}
