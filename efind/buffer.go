// Package efind implements the eFIND buffer manager (SPEC_FULL.md §4.8 /
// spec.md §4.11): a FAST refinement with a pure delta-log write buffer, a
// separate page-granular read cache, and temporal-grouping flush.
package efind

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/buffer"
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/observability"
	"github.com/intellect4all/geoindex/wal"
)

// Source is the read-through collaborator both the write buffer's miss
// path and the read buffer share.
type Source = buffer.Source

// ReadBufferKind selects which standard variant backs the read cache.
type ReadBufferKind int

const (
	ReadLRU ReadBufferKind = iota
	ReadHLRU
	ReadS2Q
	ReadTwoQ
)

// GroupingMode selects how a flush extends beyond the chosen page.
type GroupingMode int

const (
	Sequential GroupingMode = iota
	Stride
	SeqAndStride
)

// Config carries eFIND's tunables.
type Config struct {
	Dim      int
	Kind     codec.Kind
	PageSize int

	WriteBufferSize int
	MinFlushSize    int

	GroupingMode GroupingMode
	Stride       int

	ReadBufferKind          ReadBufferKind
	ReadBufferCapacityBytes int
}

// Buffer is the eFIND instance: a write buffer of per-page delta lists
// plus a read cache, backed by a shared WAL.
type Buffer struct {
	src  Source
	read buffer.Buffer
	hlru *buffer.HLRU // non-nil iff cfg.ReadBufferKind == ReadHLRU

	log  *wal.Log
	cfg  Config
	zlog *zap.Logger

	entries map[uint32]*WEntry
	rngSeed uint64

	obs observability.Observer
}

// New constructs an eFIND buffer over src, with log as its WAL.
func New(src Source, log *wal.Log, cfg Config, zlog *zap.Logger) (*Buffer, error) {
	b := &Buffer{
		src:     src,
		log:     log,
		cfg:     cfg,
		zlog:    zlog,
		entries: make(map[uint32]*WEntry),
		rngSeed: 0x9e3779b97f4a7c15,
		obs:     observability.NopObserver{},
	}
	switch cfg.ReadBufferKind {
	case ReadHLRU:
		h := buffer.NewHLRU(src, cfg.PageSize, cfg.ReadBufferCapacityBytes)
		b.hlru = h
		b.read = h
	case ReadS2Q:
		b.read = buffer.NewS2Q(src, cfg.PageSize, cfg.ReadBufferCapacityBytes)
	case ReadTwoQ:
		b.read = buffer.NewTwoQ(src, cfg.PageSize, cfg.ReadBufferCapacityBytes)
	default:
		b.read = buffer.NewLRU(src, cfg.PageSize, cfg.ReadBufferCapacityBytes)
	}
	return b, nil
}

// SetObserver wires b's flush/compaction notifications to obs,
// SPEC_FULL.md §4.10.
func (b *Buffer) SetObserver(obs observability.Observer) {
	b.obs = observability.Default(obs)
}

// NotifyHeightChange couples the read cache to tree height changes when it
// is height-aware, SPEC_FULL.md §4.8 "height coupling".
func (b *Buffer) NotifyHeightChange(newHeight int) {
	if b.hlru != nil {
		b.hlru.NotifyHeightChange(newHeight)
	}
}

func (b *Buffer) ensureEntry(pageID uint32, height int) *WEntry {
	e, ok := b.entries[pageID]
	if !ok {
		e = &WEntry{Height: height}
		b.entries[pageID] = e
	}
	return e
}

func (b *Buffer) touch(e *WEntry, nowNanos int64) {
	e.ModCount++
	e.LastTouchNanos = nowNanos
}

// Get is Retrieve under the name rtree.NodeStore/fortree.NodeStore
// adapters expect; the adapter in the index package supplies the
// nowNanos timestamp PutNew/PutDirty/Delete need that the NodeStore
// interface itself has no room for.
func (b *Buffer) Get(pageID uint32, height int) (codec.Node, error) {
	return b.Retrieve(pageID, height)
}

// Retrieve reconstructs pageID's current node image, SPEC_FULL.md §4.8
// retrieve: NEW replays deltas against an empty base; MOD pulls the base
// from the read buffer (disk on miss) and replays on top; DEL errors;
// absent passes through to the read buffer untouched.
func (b *Buffer) Retrieve(pageID uint32, height int) (codec.Node, error) {
	e, ok := b.entries[pageID]
	if !ok {
		return b.read.Find(pageID, height)
	}
	if e.Status == StatusDel {
		return codec.Node{}, ErrDeletedPage
	}
	var base codec.Node
	if e.Status == StatusNew {
		base = codec.Node{Kind: b.cfg.Kind, Height: e.Height}
	} else {
		var err error
		base, err = b.read.Find(pageID, e.Height)
		if err != nil {
			return codec.Node{}, err
		}
		base = base.Clone()
	}
	return applyDeltas(base, e.Deltas), nil
}

func applyDeltas(base codec.Node, deltas []Delta) codec.Node {
	n := base
	for _, d := range deltas {
		n = applyDelta(n, d)
	}
	return n
}

func applyDelta(n codec.Node, d Delta) codec.Node {
	switch d.Kind {
	case DeltaInsert:
		if d.Position >= len(n.Entries) {
			n.Entries = append(n.Entries, d.Entry)
			return n
		}
		n.Entries = append(n.Entries, codec.Entry{})
		copy(n.Entries[d.Position+1:], n.Entries[d.Position:])
		n.Entries[d.Position] = d.Entry
	case DeltaModBBox:
		if d.Position >= len(n.Entries) {
			n.Entries = append(n.Entries, codec.Entry{BBox: d.BBox})
		} else {
			n.Entries[d.Position].BBox = d.BBox
		}
	case DeltaModPointer:
		if d.Position >= len(n.Entries) {
			n.Entries = append(n.Entries, codec.Entry{Pointer: d.Pointer})
		} else {
			n.Entries[d.Position].Pointer = d.Pointer
		}
	case DeltaModLHV:
		if d.Position >= len(n.Entries) {
			n.Entries = append(n.Entries, codec.Entry{LHV: d.LHV})
		} else {
			n.Entries[d.Position].LHV = d.LHV
		}
	case DeltaDeleteEntry:
		if d.Position < len(n.Entries) {
			n.Entries = append(n.Entries[:d.Position], n.Entries[d.Position+1:]...)
		}
	}
	return n
}

// PutNew records pageID as a brand-new node: its whole entry list is
// logged as a sequence of insert deltas, so the write buffer never needs a
// materialized node for it.
func (b *Buffer) PutNew(pageID uint32, n codec.Node, height int, nowNanos int64) error {
	e := b.ensureEntry(pageID, height)
	e.Status = StatusNew
	e.Height = height
	e.Deltas = e.Deltas[:0]
	for i, entry := range n.Entries {
		d := Delta{Kind: DeltaInsert, Position: i, Entry: entry}
		if err := b.appendWAL(tagNew, pageID, height, d); err != nil {
			return err
		}
		e.Deltas = append(e.Deltas, d)
	}
	b.touch(e, nowNanos)
	return nil
}

// PutDirty diffs old against n and appends the minimal set of entry-level
// deltas needed to turn old into n.
func (b *Buffer) PutDirty(pageID uint32, old, n codec.Node, height int, nowNanos int64) error {
	_, existed := b.entries[pageID]
	e := b.ensureEntry(pageID, height)
	common := len(old.Entries)
	if len(n.Entries) < common {
		common = len(n.Entries)
	}
	for i := 0; i < common; i++ {
		oe, ne := old.Entries[i], n.Entries[i]
		if !oe.BBox.Equal(ne.BBox) {
			d := Delta{Kind: DeltaModBBox, Position: i, BBox: ne.BBox}
			if err := b.appendWAL(tagMod, pageID, height, d); err != nil {
				return err
			}
			e.Deltas = append(e.Deltas, d)
		}
		if oe.Pointer != ne.Pointer {
			d := Delta{Kind: DeltaModPointer, Position: i, Pointer: ne.Pointer}
			if err := b.appendWAL(tagMod, pageID, height, d); err != nil {
				return err
			}
			e.Deltas = append(e.Deltas, d)
		}
		if oe.LHV != ne.LHV {
			d := Delta{Kind: DeltaModLHV, Position: i, LHV: ne.LHV}
			if err := b.appendWAL(tagMod, pageID, height, d); err != nil {
				return err
			}
			e.Deltas = append(e.Deltas, d)
		}
	}
	for i := len(n.Entries) - 1; i >= common; i-- {
		d := Delta{Kind: DeltaInsert, Position: i, Entry: n.Entries[i]}
		if err := b.appendWAL(tagMod, pageID, height, d); err != nil {
			return err
		}
		e.Deltas = append(e.Deltas, d)
	}
	for i := len(old.Entries) - 1; i >= common; i-- {
		d := Delta{Kind: DeltaDeleteEntry, Position: i}
		if err := b.appendWAL(tagMod, pageID, height, d); err != nil {
			return err
		}
		e.Deltas = append(e.Deltas, d)
	}
	if !existed || e.Status != StatusNew {
		e.Status = StatusMod
	}
	e.Height = height
	b.touch(e, nowNanos)
	return nil
}

// Delete marks pageID gone: absent/NEW/MOD → DEL → flushed; DEL is
// terminal until the id is reallocated.
func (b *Buffer) Delete(pageID uint32, height int, nowNanos int64) error {
	e := b.ensureEntry(pageID, height)
	if err := b.appendWAL(tagDel, pageID, height, Delta{}); err != nil {
		return err
	}
	e.Status = StatusDel
	e.Deltas = nil
	b.touch(e, nowNanos)
	return nil
}

func (b *Buffer) appendWAL(tag byte, pageID uint32, height int, d Delta) error {
	if b.log == nil {
		return nil
	}
	body := encodeRecord(tag, pageID, height, d)
	_, err := b.log.Append(tag, body)
	if err != nil {
		return fmt.Errorf("efind: wal append: %w", err)
	}
	return nil
}

// Len reports the number of resident write-buffer entries.
func (b *Buffer) Len() int { return len(b.entries) }

// NeedsFlush reports whether the write buffer has reached its configured
// capacity.
func (b *Buffer) NeedsFlush() bool { return len(b.entries) >= b.cfg.WriteBufferSize }
