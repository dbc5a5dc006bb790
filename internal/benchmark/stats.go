package benchmark

import "sync/atomic"

// statsObserver implements observability.Observer, accumulating the
// counters a benchmark run reports in place of an LSM engine's write/space
// amplification: how often the tree split or folded a FOR-tree overflow
// chain back, how many flush batches ran, and how many WAL bytes
// compaction reclaimed.
type statsObserver struct {
	splits         atomic.Int64
	mergeBacks     atomic.Int64
	flushes        atomic.Int64
	flushedPages   atomic.Int64
	bytesReclaimed atomic.Int64
}

func newStatsObserver() *statsObserver { return &statsObserver{} }

func (o *statsObserver) NodeSplit(pageID uint32, height int, kind string) {
	o.splits.Add(1)
}

func (o *statsObserver) MergeBack(pageID uint32, height int, producedONodes int) {
	o.mergeBacks.Add(1)
}

func (o *statsObserver) Flush(pages []uint32) {
	o.flushes.Add(1)
	o.flushedPages.Add(int64(len(pages)))
}

func (o *statsObserver) Compaction(bytesReclaimed int64) {
	o.bytesReclaimed.Add(bytesReclaimed)
}

// Stats is a benchmark run's snapshot of everything the façade and its
// observer reported, the counterpart to a byte-oriented engine's
// write/space amplification figures.
type Stats struct {
	Splits         int64
	MergeBacks     int64
	Flushes        int64
	FlushedPages   int64
	BytesReclaimed int64

	Height        int
	PageCount     uint32
	ProgramCycles int64
	PageSize      int
}

func (o *statsObserver) snapshot() Stats {
	return Stats{
		Splits:         o.splits.Load(),
		MergeBacks:     o.mergeBacks.Load(),
		Flushes:        o.flushes.Load(),
		FlushedPages:   o.flushedPages.Load(),
		BytesReclaimed: o.bytesReclaimed.Load(),
	}
}
