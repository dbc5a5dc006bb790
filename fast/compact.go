package fast

import (
	"encoding/binary"

	"github.com/intellect4all/geoindex/wal"
)

// CompactNow runs wal.Compact over b's log using the FAST-specific
// body decoders, implementing the "emergency flush when no FLUSH record
// exists" rule of spec.md §4.10 by running FlushAll first.
func (b *Buffer) CompactNow() error {
	before := b.log.Size()
	cb := wal.CompactCallbacks{
		PageID: func(rec wal.Record) uint32 {
			return binary.LittleEndian.Uint32(rec.Body[0:4])
		},
		FlushedPages: func(rec wal.Record) ([]uint32, bool) {
			if rec.Tag != tagFlush {
				return nil, false
			}
			return decodeFlush(rec.Body), true
		},
		EmergencyFlush: func() error {
			return b.FlushAll()
		},
	}
	if err := wal.Compact(b.log, cb); err != nil {
		return err
	}
	b.obs.Compaction(before - b.log.Size())
	return nil
}
