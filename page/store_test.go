package page

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	s, err := Open(path, 256)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadWriteRoundTrip(t *testing.T) {
	s := newTestStore(t)

	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.NoError(t, s.WritePage(3, buf))

	out := make([]byte, 256)
	require.NoError(t, s.ReadPage(3, out))
	require.Equal(t, buf, out)
}

func TestWritePagesCoalescesContiguousRuns(t *testing.T) {
	s := newTestStore(t)

	ids := []ID{0, 1, 2, 5}
	buf := make([]byte, 4*256)
	for i := range ids {
		for b := 0; b < 256; b++ {
			buf[i*256+b] = byte(i + 1)
		}
	}
	require.Equal(t, []run{{start: 0, end: 3}, {start: 3, end: 4}}, contiguousRuns(ids))
	require.NoError(t, s.WritePages(ids, buf, 4))

	for i, id := range ids {
		out := make([]byte, 256)
		require.NoError(t, s.ReadPage(id, out))
		require.Equal(t, byte(i+1), out[0])
	}
}

func TestClosedStoreRejectsIO(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	buf := make([]byte, 256)
	require.ErrorIs(t, s.ReadPage(0, buf), ErrClosed)
	require.ErrorIs(t, s.WritePage(0, buf), ErrClosed)
}
