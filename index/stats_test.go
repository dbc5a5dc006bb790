package index

import "testing"

func TestStatsReportsHeightAndPages(t *testing.T) {
	idx := newFacade(t, baseConfig(RTreeKind, NoBuffer))

	before := idx.Stats()
	if before.PageCount == 0 {
		t.Fatalf("expected at least the root page counted, got 0")
	}
	if before.PageSize != idx.cfg.PageSize {
		t.Fatalf("page size mismatch: got %d, want %d", before.PageSize, idx.cfg.PageSize)
	}

	for i := 0; i < 20; i++ {
		if err := idx.Insert(uint32(i), rect(float64(i)*10, float64(i)*10)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	after := idx.Stats()
	if after.PageCount < before.PageCount {
		t.Fatalf("page count shrank after inserts: %d -> %d", before.PageCount, after.PageCount)
	}
}
