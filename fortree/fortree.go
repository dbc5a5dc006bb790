// Package fortree implements the FOR-tree core (SPEC_FULL.md §4.6,
// originally spec.md §4.8): a flash-aware R-tree variant that absorbs
// overflow with a chain of overflow (O-) nodes hung off a primary (P-)
// node instead of splitting it, merging the chain back into a compact
// form once access pressure crosses a per-tree threshold.
package fortree

import (
	"errors"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/observability"
	"github.com/intellect4all/geoindex/rtree"
	"github.com/intellect4all/geoindex/treeinfo"
)

var (
	// ErrNotFound mirrors rtree.ErrNotFound for Remove misses.
	ErrNotFound = errors.New("fortree: entry not found")
	// ErrInvariant signals an internal inconsistency.
	ErrInvariant = errors.New("fortree: invariant violated")
)

// NodeStore is the storage collaborator a Tree drives, identical in shape
// to rtree.NodeStore so the same buffer adapters serve both tree cores.
type NodeStore interface {
	Get(pageID uint32, height int) (codec.Node, error)
	PutNew(pageID uint32, n codec.Node, height int) error
	PutDirty(pageID uint32, old, new codec.Node, height int) error
	Delete(pageID uint32, height int) error
}

// Config carries FOR-tree's tunables: the shared occupancy bounds plus the
// x, y merge-back threshold constants from SPEC_FULL.md §4.6.
type Config struct {
	Dim            int
	MinEntriesLeaf int
	MaxEntriesLeaf int
	MinEntriesInt  int
	MaxEntriesInt  int

	// X, Y tune the merge-back trigger: tsc(P) >= floor((5k-1)/2) * (y/x).
	X, Y uint
}

func (c Config) minFor(height int) int {
	if height == 0 {
		return c.MinEntriesLeaf
	}
	return c.MinEntriesInt
}

func (c Config) maxFor(height int) int {
	if height == 0 {
		return c.MaxEntriesLeaf
	}
	return c.MaxEntriesInt
}

func (c Config) asRtreeConfig() rtree.Config {
	return rtree.Config{
		Dim:            c.Dim,
		Kind:           codec.FORTree,
		MinEntriesLeaf: c.MinEntriesLeaf,
		MaxEntriesLeaf: c.MaxEntriesLeaf,
		MinEntriesInt:  c.MinEntriesInt,
		MaxEntriesInt:  c.MaxEntriesInt,
		SplitType:      rtree.SplitQuadratic,
	}
}

// overflowEntry is one tracked primary node's overflow chain.
type overflowEntry struct {
	pages []uint32 // k >= 1 overflow page ids, in attachment order
	tsc   int       // searches that traversed the chain since last merge-back
}

// Tree binds a NodeStore and *treeinfo.Info to one Config, tracking the
// overflow-node table primary_page_id -> (k, tsc, [overflow_page_id...]) in
// memory alongside it.
type Tree struct {
	store    NodeStore
	info     *treeinfo.Info
	cfg      Config
	overflow map[uint32]*overflowEntry
	obs      observability.Observer
}

// New constructs a Tree over an already-initialized store/info pair.
func New(store NodeStore, info *treeinfo.Info, cfg Config) *Tree {
	return &Tree{store: store, info: info, cfg: cfg, overflow: make(map[uint32]*overflowEntry), obs: observability.NopObserver{}}
}

// SetObserver wires t's merge-back/split notifications to obs,
// SPEC_FULL.md §4.10.
func (t *Tree) SetObserver(obs observability.Observer) {
	t.obs = observability.Default(obs)
}

func (t *Tree) allocatePage() uint32 { return t.info.Allocate() }
func (t *Tree) freePage(id uint32)   { t.info.Free(id) }

// stackFrame records one level of the descent path, as rtree.stackFrame.
type stackFrame struct {
	pageID   uint32
	height   int
	node     codec.Node
	entryIdx int
}

// chainBBox returns the union of a primary node's own bbox with every one
// of its overflow pages' bboxes — the candidate bbox ChooseNode compares
// against, since an O-node's entries belong logically to its primary.
func (t *Tree) chainBBox(pageID uint32, primary codec.Node) (geom.BBox, error) {
	b := primary.BBox()
	oe := t.overflow[pageID]
	if oe == nil {
		return b, nil
	}
	for _, opID := range oe.pages {
		on, err := t.store.Get(opID, primary.Height)
		if err != nil {
			return geom.BBox{}, err
		}
		if len(on.Entries) > 0 {
			b.ExpandToInclude(on.BBox())
		}
	}
	return b, nil
}

// threshold computes floor((5k-1)/2) * (y/x) for the current chain length
// k, SPEC_FULL.md §4.6 / spec.md §4.8.
func (t *Tree) threshold(k int) float64 {
	base := float64((5*k - 1) / 2)
	if t.cfg.X == 0 {
		return base
	}
	return base * float64(t.cfg.Y) / float64(t.cfg.X)
}
