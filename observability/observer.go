// Package observability implements the statistics hook points SPEC_FULL.md
// §4.10 carries forward from original_source's
// main/statistical_processing.h ("COLLECT_STATISTICAL_DATA"): a thin
// Observer interface the core calls into on split/merge-back/flush/
// compaction events, with a no-op default so callers that don't care pay
// nothing.
package observability

import "go.uber.org/zap"

// Observer receives notification of events the core considers worth
// counting. Every method must return quickly; it runs on the calling
// goroutine inline with the operation that triggered it (spec.md §5:
// single-threaded, cooperative, no concurrency to hide latency behind).
type Observer interface {
	// NodeSplit fires whenever a tree core splits a node, for either an
	// R-tree-family split or a FOR-tree root-growth split.
	NodeSplit(pageID uint32, height int, kind string)
	// MergeBack fires whenever a FOR-tree primary's overflow chain is
	// folded back into a compact form.
	MergeBack(pageID uint32, height int, producedONodes int)
	// Flush fires once per batched write-back, FAST or eFIND.
	Flush(pages []uint32)
	// Compaction fires once per WAL compaction pass.
	Compaction(bytesReclaimed int64)
}

// NopObserver implements Observer with no-op methods, the default every
// façade construction falls back to when the caller passes nil.
type NopObserver struct{}

func (NopObserver) NodeSplit(pageID uint32, height int, kind string)       {}
func (NopObserver) MergeBack(pageID uint32, height int, producedONodes int) {}
func (NopObserver) Flush(pages []uint32)                                  {}
func (NopObserver) Compaction(bytesReclaimed int64)                       {}

// LoggingObserver wraps a *zap.Logger so that a caller passing it in gets
// split/flush activity in operational logs at debug level,
// the way the teacher's COLLECT_STATISTICAL_DATA block did, matching
// spec.md's reduction of that collaborator to "the calls the core
// actually makes".
type LoggingObserver struct {
	Log *zap.Logger
}

func (o LoggingObserver) NodeSplit(pageID uint32, height int, kind string) {
	o.Log.Debug("node split", zap.Uint32("page", pageID), zap.Int("height", height), zap.String("kind", kind))
}

func (o LoggingObserver) MergeBack(pageID uint32, height int, producedONodes int) {
	o.Log.Debug("merge-back", zap.Uint32("page", pageID), zap.Int("height", height), zap.Int("o_nodes", producedONodes))
}

func (o LoggingObserver) Flush(pages []uint32) {
	o.Log.Debug("flush", zap.Int("pages", len(pages)))
}

func (o LoggingObserver) Compaction(bytesReclaimed int64) {
	o.Log.Debug("wal compaction", zap.Int64("bytes_reclaimed", bytesReclaimed))
}

// Default returns obs if non-nil, else NopObserver{}.
func Default(obs Observer) Observer {
	if obs == nil {
		return NopObserver{}
	}
	return obs
}
