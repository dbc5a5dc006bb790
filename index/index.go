package index

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/buffer"
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/efind"
	"github.com/intellect4all/geoindex/fast"
	"github.com/intellect4all/geoindex/fortree"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/observability"
	"github.com/intellect4all/geoindex/page"
	"github.com/intellect4all/geoindex/rtree"
	"github.com/intellect4all/geoindex/treeinfo"
	"github.com/intellect4all/geoindex/wal"
)

// rootPage is the page id a brand-new tree's root occupies; page 0 carries
// no reserved meaning here since tree metadata lives in the header file,
// not on page 0 (page/page.go's ID doc comment).
const rootPage uint32 = 0

// storeAdapter is the common shape of rtree.NodeStore and fortree.NodeStore
// (structurally identical); the concrete adapters in adapters.go satisfy
// both without needing two copies.
type storeAdapter interface {
	Get(pageID uint32, height int) (codec.Node, error)
	PutNew(pageID uint32, n codec.Node, height int) error
	PutDirty(pageID uint32, old, n codec.Node, height int) error
	Delete(pageID uint32, height int) error
}

// treeCore is the unified operation surface both tree families expose.
// rtree.Tree already matches it; fortree.Tree is bridged by forTreeAdapter
// since its insert entry point is named AddElement, not Insert.
type treeCore interface {
	Insert(pointer uint32, bbox geom.BBox) error
	Remove(pointer uint32, bbox geom.BBox) error
	Search(query geom.BBox, predicate geom.Predicate) ([]uint32, error)
	SetObserver(obs observability.Observer)
}

// forTreeAdapter renames fortree.Tree's AddElement to Insert so one
// treeCore interface serves every tree kind the façade supports.
type forTreeAdapter struct{ *fortree.Tree }

func (a forTreeAdapter) Insert(pointer uint32, bbox geom.BBox) error {
	return a.Tree.AddElement(pointer, bbox)
}

// ErrNoFlusher is returned by Flush/Compact when the façade's buffer kind
// keeps no flush-deferred state (none, or one of the standard read-through
// variants, which write back synchronously or on FlushAll/eviction only).
var ErrNoFlusher = errors.New("index: buffer kind has no explicit flush/compact operation")

// SpatialIndex is the façade (SPEC_FULL.md §4.10 / spec.md §4.12): one
// tree core bound to one buffer kind, plus the header/WAL plumbing needed
// to persist and recover it.
type SpatialIndex struct {
	cfg Config

	store *page.Store
	log   *wal.Log
	info  *treeinfo.Info
	core  treeCore
	obs   observability.Observer

	stdBuf   buffer.Buffer
	fastBuf  *fast.Buffer
	efindBuf *efind.Buffer
	hlru     *buffer.HLRU

	backingPath string
	headerPath  string
	logPath     string

	lastHeight int
}

// New constructs a brand-new façade: opens (creating) the backing page
// file, writes an empty root node, and binds the configured tree core and
// buffer kind over it. obs may be nil.
func New(cfg Config, backingPath, headerPath, logPath string, zlog *zap.Logger, obs observability.Observer) (*SpatialIndex, error) {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	store, err := page.Open(backingPath, cfg.PageSize,
		page.WithAccessMode(cfg.IOAccess), page.WithStorageKind(cfg.Storage), page.WithLogger(zlog))
	if err != nil {
		return nil, fmt.Errorf("index: open backing store: %w", err)
	}

	var log *wal.Log
	if cfg.Buffer == FASTBuffer || cfg.Buffer == EFINDBuffer {
		log, err = wal.Open(logPath, int64(cfg.LogSize), bodyLengthFuncFor(cfg), zlog)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("index: open wal: %w", err)
		}
	}

	src := newPageSource(store, cfg.Dim, cfg.kind())
	adapter, stdBuf, fastBuf, efindBuf, hlru, err := buildNodeStore(cfg, src, log, zlog, systemNow)
	if err != nil {
		store.Close()
		return nil, err
	}

	root := codec.Node{Kind: cfg.kind(), Height: 0}
	if err := adapter.PutNew(rootPage, root, 0); err != nil {
		store.Close()
		return nil, fmt.Errorf("index: write initial root: %w", err)
	}

	info := treeinfo.New(rootPage)
	core := buildCore(cfg, adapter, info)
	core.SetObserver(obs)
	if fastBuf != nil {
		fastBuf.SetObserver(obs)
	}
	if efindBuf != nil {
		efindBuf.SetObserver(obs)
	}

	return &SpatialIndex{
		cfg: cfg, store: store, log: log, info: info, core: core, obs: observability.Default(obs),
		stdBuf: stdBuf, fastBuf: fastBuf, efindBuf: efindBuf, hlru: hlru,
		backingPath: backingPath, headerPath: headerPath, logPath: logPath,
	}, nil
}

// Open reconstructs a façade previously persisted via WriteHeader, replaying
// any WAL records a FAST/eFIND buffer left un-flushed.
func Open(headerPath, backingPath, logPath string, zlog *zap.Logger, obs observability.Observer) (*SpatialIndex, error) {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	h, err := ReadHeader(headerPath)
	if err != nil {
		return nil, err
	}
	cfg := h.Config

	store, err := page.Open(backingPath, cfg.PageSize,
		page.WithAccessMode(cfg.IOAccess), page.WithStorageKind(cfg.Storage), page.WithLogger(zlog))
	if err != nil {
		return nil, fmt.Errorf("index: open backing store: %w", err)
	}

	var log *wal.Log
	if cfg.Buffer == FASTBuffer || cfg.Buffer == EFINDBuffer {
		log, err = wal.Open(logPath, int64(cfg.LogSize), bodyLengthFuncFor(cfg), zlog)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("index: open wal: %w", err)
		}
	}

	src := newPageSource(store, cfg.Dim, cfg.kind())
	adapter, stdBuf, fastBuf, efindBuf, hlru, err := recoverNodeStore(cfg, src, log, zlog, systemNow)
	if err != nil {
		store.Close()
		return nil, err
	}

	info := treeinfo.Restore(h.RootPageID, h.Height, h.EmptyPages, h.LastAllocated)
	core := buildCore(cfg, adapter, info)
	core.SetObserver(obs)
	if fastBuf != nil {
		fastBuf.SetObserver(obs)
	}
	if efindBuf != nil {
		efindBuf.SetObserver(obs)
	}

	return &SpatialIndex{
		cfg: cfg, store: store, log: log, info: info, core: core, obs: observability.Default(obs),
		stdBuf: stdBuf, fastBuf: fastBuf, efindBuf: efindBuf, hlru: hlru,
		backingPath: backingPath, headerPath: headerPath, logPath: logPath,
		lastHeight: h.Height,
	}, nil
}

func systemNow() int64 { return time.Now().UnixNano() }

func bodyLengthFuncFor(cfg Config) wal.BodyLengthFunc {
	if cfg.Buffer == EFINDBuffer {
		return efind.BodyLengthFunc(cfg.Dim)
	}
	return fast.BodyLengthFunc(cfg.Dim, cfg.kind())
}

// buildNodeStore constructs the buffer kind Config.Buffer names and wraps
// it in the matching NodeStore-shaped adapter (adapters.go). It returns
// whichever concrete buffer handle the façade needs to forward
// Flush/FlushAll/CompactNow/height-coupling calls to; the other two are
// nil.
func buildNodeStore(cfg Config, src *pageSource, log *wal.Log, zlog *zap.Logger, now nowFunc) (storeAdapter, buffer.Buffer, *fast.Buffer, *efind.Buffer, *buffer.HLRU, error) {
	switch cfg.Buffer {
	case LRUBuffer:
		b := buffer.NewLRU(src, cfg.PageSize, cfg.BufferCapacityBytes)
		return &cachedStore{src: src, buf: b}, b, nil, nil, nil, nil
	case HLRUBuffer:
		b := buffer.NewHLRU(src, cfg.PageSize, cfg.BufferCapacityBytes)
		return &cachedStore{src: src, buf: b}, b, nil, nil, b, nil
	case S2QBuffer:
		b := buffer.NewS2Q(src, cfg.PageSize, cfg.BufferCapacityBytes)
		return &cachedStore{src: src, buf: b}, b, nil, nil, nil, nil
	case TwoQBuffer:
		b := buffer.NewTwoQ(src, cfg.PageSize, cfg.BufferCapacityBytes)
		return &cachedStore{src: src, buf: b}, b, nil, nil, nil, nil
	case FASTBuffer:
		fb, err := fast.New(src, log, fast.Config{
			Dim: cfg.Dim, Kind: cfg.kind(), PageSize: cfg.PageSize,
			FlushingUnitSize: cfg.FASTFlushingUnitSize, Policy: cfg.FASTPolicy, MaxCapacity: cfg.FASTMaxCapacity,
		}, zlog)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("index: build fast buffer: %w", err)
		}
		return &fastStore{buf: fb, now: now, kind: cfg.kind()}, nil, fb, nil, nil, nil
	case EFINDBuffer:
		eb, err := efind.New(src, log, efind.Config{
			Dim: cfg.Dim, Kind: cfg.kind(), PageSize: cfg.PageSize,
			WriteBufferSize: cfg.EFINDWriteBufferSize, MinFlushSize: cfg.EFINDMinFlushSize,
			GroupingMode: cfg.EFINDGroupingMode, Stride: cfg.EFINDStride,
			ReadBufferKind: cfg.EFINDReadBufferKind, ReadBufferCapacityBytes: cfg.BufferCapacityBytes,
		}, zlog)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("index: build efind buffer: %w", err)
		}
		return &efindStore{buf: eb, now: now}, nil, nil, eb, nil, nil
	default:
		return &noneStore{src: src}, nil, nil, nil, nil, nil
	}
}

// recoverNodeStore is buildNodeStore's counterpart for Open: FAST/eFIND
// replay their WAL through Recover instead of starting from New.
func recoverNodeStore(cfg Config, src *pageSource, log *wal.Log, zlog *zap.Logger, now nowFunc) (storeAdapter, buffer.Buffer, *fast.Buffer, *efind.Buffer, *buffer.HLRU, error) {
	switch cfg.Buffer {
	case FASTBuffer:
		fb, err := fast.Recover(src, log, fast.Config{
			Dim: cfg.Dim, Kind: cfg.kind(), PageSize: cfg.PageSize,
			FlushingUnitSize: cfg.FASTFlushingUnitSize, Policy: cfg.FASTPolicy, MaxCapacity: cfg.FASTMaxCapacity,
		}, zlog)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("index: recover fast buffer: %w", err)
		}
		return &fastStore{buf: fb, now: now, kind: cfg.kind()}, nil, fb, nil, nil, nil
	case EFINDBuffer:
		eb, err := efind.Recover(src, log, efind.Config{
			Dim: cfg.Dim, Kind: cfg.kind(), PageSize: cfg.PageSize,
			WriteBufferSize: cfg.EFINDWriteBufferSize, MinFlushSize: cfg.EFINDMinFlushSize,
			GroupingMode: cfg.EFINDGroupingMode, Stride: cfg.EFINDStride,
			ReadBufferKind: cfg.EFINDReadBufferKind, ReadBufferCapacityBytes: cfg.BufferCapacityBytes,
		}, zlog)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("index: recover efind buffer: %w", err)
		}
		return &efindStore{buf: eb, now: now}, nil, nil, eb, nil, nil
	default:
		return buildNodeStore(cfg, src, log, zlog, now)
	}
}

// buildCore constructs the tree-kind-specific core over adapter/info.
func buildCore(cfg Config, adapter storeAdapter, info *treeinfo.Info) treeCore {
	if cfg.Tree == FORTreeKind {
		t := fortree.New(adapter, info, fortree.Config{
			Dim: cfg.Dim, MinEntriesLeaf: cfg.MinEntriesLeaf, MaxEntriesLeaf: cfg.MaxEntriesLeaf,
			MinEntriesInt: cfg.MinEntriesInt, MaxEntriesInt: cfg.MaxEntriesInt, X: cfg.ForX, Y: cfg.ForY,
		})
		return forTreeAdapter{t}
	}
	return rtree.New(adapter, info, rtree.Config{
		Dim: cfg.Dim, Kind: cfg.kind(),
		MinEntriesLeaf: cfg.MinEntriesLeaf, MaxEntriesLeaf: cfg.MaxEntriesLeaf,
		MinEntriesInt: cfg.MinEntriesInt, MaxEntriesInt: cfg.MaxEntriesInt,
		SplitType:        cfg.SplitType,
		ReinsertPercLeaf: cfg.ReinsertPercLeaf, ReinsertPercInt: cfg.ReinsertPercInt, MaxNeighbors: cfg.MaxNeighbors,
		HilbertOrder: cfg.HilbertOrder, SpaceMin: cfg.SpaceMin, SpaceMax: cfg.SpaceMax,
	})
}

// GetType reports the tree-core family this façade was constructed with.
func (s *SpatialIndex) GetType() TreeKind { return s.cfg.Tree }

// Insert adds pointer with geometry g's bounding box, spec.md §4.12 insert.
func (s *SpatialIndex) Insert(pointer uint32, g geom.Geometry) error {
	if err := s.core.Insert(pointer, g.MBR()); err != nil {
		return err
	}
	s.notifyHeightChange()
	return nil
}

// Remove deletes the entry naming pointer with geometry g, spec.md §4.12
// remove.
func (s *SpatialIndex) Remove(pointer uint32, g geom.Geometry) error {
	if err := s.core.Remove(pointer, g.MBR()); err != nil {
		return err
	}
	s.notifyHeightChange()
	return nil
}

// Update removes the old (pointer, geometry) pair and inserts the new one,
// spec.md §4.12 update: a failure partway through is surfaced rather than
// silently rolled back, so the caller sees exactly which half failed.
func (s *SpatialIndex) Update(oldPointer uint32, oldGeom geom.Geometry, newPointer uint32, newGeom geom.Geometry) error {
	if err := s.Remove(oldPointer, oldGeom); err != nil {
		return fmt.Errorf("index: update remove half failed: %w", err)
	}
	if err := s.Insert(newPointer, newGeom); err != nil {
		return fmt.Errorf("index: update insert half failed: %w", err)
	}
	return nil
}

// Search returns the pointers of every entry satisfying predicate against
// g's bounding box, spec.md §4.12 search.
func (s *SpatialIndex) Search(g geom.Geometry, predicate geom.Predicate) ([]uint32, error) {
	return s.core.Search(g.MBR(), predicate)
}

// notifyHeightChange couples a height-aware read cache (HLRU, standalone
// or inside eFIND) to the tree's current height, SPEC_FULL.md §4.8/§4.9
// "height coupling".
func (s *SpatialIndex) notifyHeightChange() {
	h := s.info.Height()
	if h == s.lastHeight {
		return
	}
	s.lastHeight = h
	if s.hlru != nil {
		s.hlru.NotifyHeightChange(h)
	}
	if s.efindBuf != nil {
		s.efindBuf.NotifyHeightChange(h)
	}
}

// Flush forces one flush-unit/flush-set write-back for buffer kinds that
// defer writes (FAST, eFIND), returning the flushed page ids. Other buffer
// kinds return ErrNoFlusher: none writes through synchronously, and the
// standard LRU/HLRU/S2Q/2Q variants only expose FlushAll.
func (s *SpatialIndex) Flush() ([]uint32, error) {
	switch {
	case s.fastBuf != nil:
		return s.fastBuf.Flush()
	case s.efindBuf != nil:
		return s.efindBuf.Flush()
	default:
		return nil, ErrNoFlusher
	}
}

// FlushAll drains every buffered modification back to the backing store,
// across every buffer kind this façade might be bound to.
func (s *SpatialIndex) FlushAll() error {
	switch {
	case s.fastBuf != nil:
		return s.fastBuf.FlushAll()
	case s.efindBuf != nil:
		return s.efindBuf.FlushAll()
	case s.stdBuf != nil:
		return s.stdBuf.FlushAll()
	default:
		return nil
	}
}

// Compact runs WAL compaction for FAST/eFIND buffer kinds; other kinds
// keep no WAL and return ErrNoFlusher.
func (s *SpatialIndex) Compact() error {
	switch {
	case s.fastBuf != nil:
		return s.fastBuf.CompactNow()
	case s.efindBuf != nil:
		return s.efindBuf.CompactNow()
	default:
		return ErrNoFlusher
	}
}

// Stats reports page- and flash-level counters, spec.md §4.10's collaborator
// surface reduced to the numbers a caller can read back after a run:
// current tree height, pages allocated, and cumulative program cycles
// issued against the backing store (page/store.go's write-amplification
// counter).
type Stats struct {
	Height        int
	PageCount     uint32
	ProgramCycles int64
	PageSize      int
}

func (s *SpatialIndex) Stats() Stats {
	_, height, _, lastAlloc := s.info.Snapshot()
	return Stats{
		Height:        height,
		PageCount:     lastAlloc + 1,
		ProgramCycles: s.store.ProgramCycles(),
		PageSize:      s.store.PageSize(),
	}
}

// WriteHeader persists the façade's configuration and tree-info snapshot
// to path, spec.md §6 "one header file per index".
func (s *SpatialIndex) WriteHeader(path string) error {
	root, height, empty, lastAlloc := s.info.Snapshot()
	return WriteHeader(path, HeaderV1{
		Version: 1, Config: s.cfg,
		RootPageID: root, Height: height, EmptyPages: empty, LastAllocated: lastAlloc,
	})
}

// Destroy flushes pending writes, closes the backing store and WAL, and
// removes every file this façade owns (backing store, header, WAL).
func (s *SpatialIndex) Destroy() error {
	var errs []error
	if err := s.FlushAll(); err != nil {
		errs = append(errs, err)
	}
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range []string{s.backingPath, s.headerPath, s.logPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}
