// Package rtree implements the R-tree family core (spec.md §4.5–§4.7):
// insert with pluggable split strategies, remove with condense-and-reinsert,
// and predicate search, plus the Hilbert R-tree's largest-hilbert-value
// bookkeeping. The package is storage-agnostic: it drives a NodeStore the
// caller binds to a concrete buffer (none, LRU/HLRU/S2Q/2Q, FAST, eFIND).
package rtree

import (
	"errors"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/observability"
	"github.com/intellect4all/geoindex/treeinfo"
)

var (
	// ErrNotFound is returned by Remove when the target entry can't be
	// located, spec.md §7 NOT_FOUND.
	ErrNotFound = errors.New("rtree: entry not found")
	// ErrInvariant signals an internal inconsistency, spec.md §7
	// INVARIANT_VIOLATED.
	ErrInvariant = errors.New("rtree: invariant violated")
)

// NodeStore is the storage collaborator a Tree drives. Implementations
// bind it to a concrete buffer manager; the tree core never sees which one.
type NodeStore interface {
	Get(pageID uint32, height int) (codec.Node, error)
	// PutNew stores a brand new node at a freshly allocated page id.
	PutNew(pageID uint32, n codec.Node, height int) error
	// PutDirty overwrites the current image of an existing node.
	PutDirty(pageID uint32, old, new codec.Node, height int) error
	// Delete marks pageID's node gone.
	Delete(pageID uint32, height int) error
}

// Config carries the per-instance tunables spec.md §6 lists for the R-tree
// family.
type Config struct {
	Dim            int
	Kind           codec.Kind
	MinEntriesLeaf int
	MaxEntriesLeaf int
	MinEntriesInt  int
	MaxEntriesInt  int
	SplitType      SplitType

	// R*-tree additions (spec.md §4.7); ignored unless Kind == RStarTree.
	ReinsertPercLeaf float64
	ReinsertPercInt  float64
	MaxNeighbors     int

	// Hilbert R-tree additions; ignored unless Kind == HilbertTree.
	HilbertOrder uint
	SpaceMin     []float64
	SpaceMax     []float64
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

// Tree binds a NodeStore and a *treeinfo.Info to one Config and exposes the
// spatial-index operation surface the façade (C10) delegates to.
type Tree struct {
	store NodeStore
	info  *treeinfo.Info
	cfg   Config

	// reinsertedAtLevel guards against cascading R*-tree forced reinserts
	// within one user-facing Insert call (spec.md §4.7).
	reinsertedAtLevel map[int]bool

	obs observability.Observer
}

// New constructs a Tree over an already-initialized store/info pair.
func New(store NodeStore, info *treeinfo.Info, cfg Config) *Tree {
	return &Tree{store: store, info: info, cfg: cfg, obs: observability.NopObserver{}}
}

// SetObserver wires t's split notifications to obs, SPEC_FULL.md §4.10.
func (t *Tree) SetObserver(obs observability.Observer) {
	t.obs = observability.Default(obs)
}

func (t *Tree) allocatePage() uint32 { return t.info.Allocate() }

func (t *Tree) freePage(id uint32) { t.info.Free(id) }

// stackFrame records one level of the descent path for AdjustTree.
type stackFrame struct {
	pageID uint32
	height int
	node   codec.Node
	// entryIdx is this node's position within its parent's entry array, or
	// -1 for the root.
	entryIdx int
}

func nodeBBox(n codec.Node) geom.BBox { return n.BBox() }
