package wal

import (
	"fmt"
	"os"
)

// CompactCallbacks lets the FAST/eFIND buffers tell Compact how to read
// their tag-specific bodies: which page a non-FLUSH record belongs to,
// and which pages a FLUSH record covers.
type CompactCallbacks struct {
	// PageID extracts the page id a non-FLUSH record pertains to.
	PageID func(Record) uint32
	// FlushedPages reports, for a FLUSH-tagged record, the page ids it
	// marks durable; ok is false for any other tag.
	FlushedPages func(Record) (pages []uint32, ok bool)
	// EmergencyFlush is called, at most once, when the log holds no FLUSH
	// record at all — compaction alone can't shrink such a log, so
	// spec.md §4.10 requires a real flush first to create one.
	EmergencyFlush func() error
}

// Compact walks l backwards per spec.md §4.10, discarding any record
// whose page id is covered by a later (in log order) FLUSH record, and
// re-appends the survivors — in their original order — into a freshly
// created file that atomically replaces l's backing file via rename. l
// remains usable afterward, now backed by the compacted file.
func Compact(l *Log, cb CompactCallbacks) error {
	survivors, sawFlush, err := scanSurvivors(l, cb)
	if err != nil {
		return err
	}

	if !sawFlush && cb.EmergencyFlush != nil {
		if err := cb.EmergencyFlush(); err != nil {
			return fmt.Errorf("wal: emergency flush before compaction: %w", err)
		}
		survivors, _, err = scanSurvivors(l, cb)
		if err != nil {
			return err
		}
	}

	tmpPath := l.Path() + ".compact.tmp"
	_ = os.Remove(tmpPath)
	tmp, err := Open(tmpPath, 0, l.bodyLen, l.log)
	if err != nil {
		return fmt.Errorf("wal: open compaction file: %w", err)
	}
	for _, rec := range survivors {
		if _, err := tmp.Append(rec.Tag, rec.Body); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("wal: write compacted record: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	newSize, newLast := tmp.size, tmp.lastOffset
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("wal: rename compacted log into place: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.size = newSize
	l.lastOffset = newLast
	l.closed = false
	return nil
}

// scanSurvivors performs one backward pass, returning the records that
// are not covered by a later FLUSH record, in their original (oldest
// first) order, plus whether any FLUSH record was seen at all.
func scanSurvivors(l *Log, cb CompactCallbacks) ([]Record, bool, error) {
	if l.LastOffset() < 0 {
		return nil, false, nil
	}
	r, err := l.Reader()
	if err != nil {
		return nil, false, err
	}
	defer r.Close()

	flushed := make(map[uint32]bool)
	var reverseOrder []Record
	sawFlush := false

	err = WalkReverse(r, l.LastOffset(), func(rec Record) bool {
		if pages, ok := cb.FlushedPages(rec); ok {
			sawFlush = true
			for _, p := range pages {
				flushed[p] = true
			}
			return true
		}
		if !flushed[cb.PageID(rec)] {
			reverseOrder = append(reverseOrder, rec)
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}

	survivors := make([]Record, len(reverseOrder))
	for i, rec := range reverseOrder {
		survivors[len(reverseOrder)-1-i] = rec
	}
	return survivors, sawFlush, nil
}
