package wal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test scheme: tag 'D' (data) has a fixed 4-byte page-id body; tag 'F'
// (flush) body is [u32 n][n x u32 page id].
const (
	tagData  = 'D'
	tagFlush = 'F'
)

func testBodyLen(f *os.File, bodyStart int64, tag byte) (int, error) {
	if tag == tagData {
		return 4, nil
	}
	var hdr [4]byte
	if _, err := f.ReadAt(hdr[:], bodyStart); err != nil {
		return 0, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	return 4 + int(n)*4, nil
}

func dataBody(pageID uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, pageID)
	return b
}

func flushBody(pages ...uint32) []byte {
	b := make([]byte, 4+4*len(pages))
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(pages)))
	for i, p := range pages {
		binary.LittleEndian.PutUint32(b[4+4*i:8+4*i], p)
	}
	return b
}

func openTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wal")
	l, err := Open(path, 0, testBodyLen, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndReverseWalk(t *testing.T) {
	l := openTestLog(t)

	_, err := l.Append(tagData, dataBody(1))
	require.NoError(t, err)
	_, err = l.Append(tagData, dataBody(2))
	require.NoError(t, err)
	_, err = l.Append(tagFlush, flushBody(1, 2))
	require.NoError(t, err)

	r, err := l.Reader()
	require.NoError(t, err)
	defer r.Close()

	var tags []byte
	err = WalkReverse(r, l.LastOffset(), func(rec Record) bool {
		tags = append(tags, rec.Tag)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []byte{tagFlush, tagData, tagData}, tags)
}

func TestCompactDropsFlushedPages(t *testing.T) {
	l := openTestLog(t)

	_, _ = l.Append(tagData, dataBody(1))
	_, _ = l.Append(tagData, dataBody(2))
	_, _ = l.Append(tagFlush, flushBody(1))
	_, _ = l.Append(tagData, dataBody(3))

	cb := CompactCallbacks{
		PageID: func(r Record) uint32 { return binary.LittleEndian.Uint32(r.Body) },
		FlushedPages: func(r Record) ([]uint32, bool) {
			if r.Tag != tagFlush {
				return nil, false
			}
			n := binary.LittleEndian.Uint32(r.Body[0:4])
			pages := make([]uint32, n)
			for i := range pages {
				pages[i] = binary.LittleEndian.Uint32(r.Body[4+4*i : 8+4*i])
			}
			return pages, true
		},
	}

	require.NoError(t, Compact(l, cb))

	r, err := l.Reader()
	require.NoError(t, err)
	defer r.Close()

	var survivors []uint32
	err = WalkReverse(r, l.LastOffset(), func(rec Record) bool {
		survivors = append(survivors, binary.LittleEndian.Uint32(rec.Body))
		return true
	})
	require.NoError(t, err)
	// page 1 was flushed and must be gone; page 2 and 3 survive.
	require.ElementsMatch(t, []uint32{2, 3}, survivors)
}

func TestCompactRunsEmergencyFlushWhenNoFlushRecordExists(t *testing.T) {
	l := openTestLog(t)
	_, _ = l.Append(tagData, dataBody(1))
	_, _ = l.Append(tagData, dataBody(2))

	emergencyRan := false
	cb := CompactCallbacks{
		PageID: func(r Record) uint32 { return binary.LittleEndian.Uint32(r.Body) },
		FlushedPages: func(r Record) ([]uint32, bool) {
			if r.Tag != tagFlush {
				return nil, false
			}
			return []uint32{}, true
		},
		EmergencyFlush: func() error {
			emergencyRan = true
			_, err := l.Append(tagFlush, flushBody(1, 2))
			return err
		},
	}

	require.NoError(t, Compact(l, cb))
	require.True(t, emergencyRan)
}
