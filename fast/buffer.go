package fast

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/intellect4all/geoindex/buffer"
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
	"github.com/intellect4all/geoindex/observability"
	"github.com/intellect4all/geoindex/wal"
)

// Source is the collaborator Retrieve reads through to and a flush writes
// back to. It is the same shape as buffer.Source so a page.Store-backed
// implementation serves both.
type Source = buffer.Source

// Config carries the construction-time parameters spec.md §6 lists under
// "FAST ...".
type Config struct {
	Dim              int
	Kind             codec.Kind
	PageSize         int
	FlushingUnitSize int
	Policy           FlushPolicy
	MaxCapacity      int // bytes; 0 means unbounded
}

// Buffer implements the FAST write-absorbing buffer, spec.md §4.10.
type Buffer struct {
	src    Source
	log    *wal.Log
	zlog   *zap.Logger
	cfg    Config
	bypass bool // true once CAPACITY_REFUSED: every op writes through to src

	entries map[uint32]*Entry
	unitOf  map[uint32]int
	units   []*flushUnit

	heap *unitHeap // non-nil only for FASTPolicy/FASTStarPolicy

	randState uint64 // xorshift seed for RandomPolicy, deterministic per buffer

	obs observability.Observer
}

// New constructs a FAST buffer over src, appending to (and, if non-empty,
// expecting the caller to have already recovered from) log.
func New(src Source, log *wal.Log, cfg Config, zlog *zap.Logger) (*Buffer, error) {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	if cfg.FlushingUnitSize <= 0 {
		cfg.FlushingUnitSize = 1
	}
	b := &Buffer{
		src:       src,
		log:       log,
		zlog:      zlog,
		cfg:       cfg,
		entries:   make(map[uint32]*Entry),
		unitOf:    make(map[uint32]int),
		randState: 0x9e3779b97f4a7c15,
		obs:       observability.NopObserver{},
	}
	idOverhead := 4
	if cfg.MaxCapacity > 0 && cfg.MaxCapacity < cfg.PageSize+idOverhead {
		b.bypass = true
	}
	if cfg.Policy == FASTPolicy || cfg.Policy == FASTStarPolicy {
		b.heap = newUnitHeap(cfg.Policy)
	}
	return b, nil
}

// Bypassed reports whether this buffer refused its configured capacity and
// is writing through to disk for every mutation (spec.md §7 CAPACITY_REFUSED).
func (b *Buffer) Bypassed() bool { return b.bypass }

// SetObserver wires b's flush/compaction notifications to obs,
// SPEC_FULL.md §4.10.
func (b *Buffer) SetObserver(obs observability.Observer) {
	b.obs = observability.Default(obs)
}

func (b *Buffer) unitFor(pageID uint32) *flushUnit {
	if idx, ok := b.unitOf[pageID]; ok {
		return b.units[idx]
	}
	idx := len(b.units)
	if n := len(b.units); n > 0 {
		last := b.units[n-1]
		if len(last.pages) < b.cfg.FlushingUnitSize {
			idx = n - 1
		}
	}
	var u *flushUnit
	if idx == len(b.units) {
		u = &flushUnit{}
		b.units = append(b.units, u)
	} else {
		u = b.units[idx]
	}
	u.pages = append(u.pages, pageID)
	b.unitOf[pageID] = idx
	if b.heap != nil {
		b.heap.touch(idx, u)
	}
	return u
}

func (b *Buffer) touch(pageID uint32, nowNanos int64) {
	e := b.entries[pageID]
	e.ModCount++
	e.LastTouchNanos = nowNanos
	u := b.unitFor(pageID)
	u.totalMods++
	u.lastTouchNanos = nowNanos
	if b.heap != nil {
		b.heap.fix(b.unitOf[pageID], u)
	}
}

// PutNew records a freshly allocated node, spec.md §4.10 put_new.
func (b *Buffer) PutNew(pageID uint32, n codec.Node, height int, nowNanos int64) error {
	if b.bypass {
		return b.src.WriteNode(pageID, n)
	}
	if _, err := b.log.Append(tagNew, encodeNew(pageID, height, b.cfg.Dim, n)); err != nil {
		return fmt.Errorf("fast: wal append NEW: %w", err)
	}
	b.entries[pageID] = &Entry{Status: StatusNew, Height: height, Node: n.Clone()}
	b.touch(pageID, nowNanos)
	return nil
}

// ModBBox appends a BBOX-kind delta, spec.md §4.10 mod_bbox. present=false
// removes the entry at position.
func (b *Buffer) ModBBox(pageID uint32, position int, present bool, bbox geom.BBox, height int, nowNanos int64) error {
	if b.bypass {
		return b.writeThroughMod(pageID, height, Delta{Kind: DeltaBBox, Position: position, BBox: bbox}, present)
	}
	if _, err := b.log.Append(tagMod, encodeMod(pageID, height, DeltaBBox, position, present, bbox, 0, 0)); err != nil {
		return fmt.Errorf("fast: wal append MOD: %w", err)
	}
	b.applyDelta(pageID, height, Delta{Kind: DeltaBBox, Position: position, BBox: bbox}, present)
	b.touch(pageID, nowNanos)
	return nil
}

// ModPointer appends a POINTER-kind delta, spec.md §4.10 mod_pointer.
func (b *Buffer) ModPointer(pageID uint32, position int, ptr uint32, height int, nowNanos int64) error {
	if b.bypass {
		return b.writeThroughMod(pageID, height, Delta{Kind: DeltaPointer, Position: position, Pointer: ptr}, true)
	}
	if _, err := b.log.Append(tagMod, encodeMod(pageID, height, DeltaPointer, position, true, geom.BBox{}, ptr, 0)); err != nil {
		return fmt.Errorf("fast: wal append MOD: %w", err)
	}
	b.applyDelta(pageID, height, Delta{Kind: DeltaPointer, Position: position, Pointer: ptr}, true)
	b.touch(pageID, nowNanos)
	return nil
}

// ModLHV appends an LHV-kind delta (Hilbert only), spec.md §4.10 mod_lhv.
func (b *Buffer) ModLHV(pageID uint32, position int, lhv uint64, height int, nowNanos int64) error {
	if b.bypass {
		return b.writeThroughMod(pageID, height, Delta{Kind: DeltaLHV, Position: position, LHV: lhv}, true)
	}
	if _, err := b.log.Append(tagMod, encodeMod(pageID, height, DeltaLHV, position, true, geom.BBox{}, 0, lhv)); err != nil {
		return fmt.Errorf("fast: wal append MOD: %w", err)
	}
	b.applyDelta(pageID, height, Delta{Kind: DeltaLHV, Position: position, LHV: lhv}, true)
	b.touch(pageID, nowNanos)
	return nil
}

// ModHole opens a slot at position, shifting tails right (Hilbert only),
// spec.md §4.10 mod_hole.
func (b *Buffer) ModHole(pageID uint32, position int, height int, nowNanos int64) error {
	if b.bypass {
		return b.writeThroughMod(pageID, height, Delta{Kind: DeltaHole, Position: position}, true)
	}
	if _, err := b.log.Append(tagMod, encodeMod(pageID, height, DeltaHole, position, false, geom.BBox{}, 0, 0)); err != nil {
		return fmt.Errorf("fast: wal append MOD: %w", err)
	}
	b.applyDelta(pageID, height, Delta{Kind: DeltaHole, Position: position}, false)
	b.touch(pageID, nowNanos)
	return nil
}

// DelNode marks pageID deleted, discarding any delta list, spec.md §4.10
// del_node.
func (b *Buffer) DelNode(pageID uint32, height int, nowNanos int64) error {
	if b.bypass {
		return nil
	}
	if _, err := b.log.Append(tagDel, encodeDel(pageID, height)); err != nil {
		return fmt.Errorf("fast: wal append DEL: %w", err)
	}
	b.entries[pageID] = &Entry{Status: StatusDel, Height: height}
	b.touch(pageID, nowNanos)
	return nil
}

// ensureEntry returns the in-RAM entry for pageID, creating an absent-MOD
// entry (no deltas yet) if none exists.
func (b *Buffer) ensureEntry(pageID uint32, height int) *Entry {
	e, ok := b.entries[pageID]
	if !ok {
		e = &Entry{Status: StatusMod, Height: height}
		b.entries[pageID] = e
	}
	return e
}

// applyDelta mutates the in-RAM entry for pageID: directly against the node
// if NEW, otherwise appended to the pending delta list, per spec.md §4.10
// ("Writes the list if the page is MOD; if the page is NEW, applies
// directly to the in-RAM node").
func (b *Buffer) applyDelta(pageID uint32, height int, d Delta, present bool) {
	e := b.ensureEntry(pageID, height)
	if e.Status == StatusNew {
		applyDeltaToNode(&e.Node, d, present)
		return
	}
	e.Deltas = append(e.Deltas, deltaWithPresence(d, present))
}

// deltaWithPresence folds the BBOX "remove" flag into the delta itself: a
// DeltaBBox with no min/max set (Min == nil) means "remove this entry".
func deltaWithPresence(d Delta, present bool) Delta {
	if d.Kind == DeltaBBox && !present {
		d.BBox = geom.BBox{}
	}
	return d
}

func applyDeltaToNode(n *codec.Node, d Delta, present bool) {
	switch d.Kind {
	case DeltaBBox:
		if !present {
			if d.Position >= 0 && d.Position < len(n.Entries) {
				n.Entries = append(n.Entries[:d.Position], n.Entries[d.Position+1:]...)
			}
			return
		}
		if d.Position == len(n.Entries) {
			n.Entries = append(n.Entries, codec.Entry{BBox: d.BBox.Clone()})
			return
		}
		if d.Position >= 0 && d.Position < len(n.Entries) {
			n.Entries[d.Position].BBox = d.BBox.Clone()
		}
	case DeltaPointer:
		if d.Position == len(n.Entries) {
			n.Entries = append(n.Entries, codec.Entry{Pointer: d.Pointer})
			return
		}
		if d.Position >= 0 && d.Position < len(n.Entries) {
			n.Entries[d.Position].Pointer = d.Pointer
		}
	case DeltaLHV:
		if d.Position >= 0 && d.Position < len(n.Entries) {
			n.Entries[d.Position].LHV = d.LHV
		}
	case DeltaHole:
		pos := d.Position
		if pos < 0 {
			pos = 0
		}
		if pos > len(n.Entries) {
			pos = len(n.Entries)
		}
		n.Entries = append(n.Entries, codec.Entry{})
		copy(n.Entries[pos+1:], n.Entries[pos:])
		n.Entries[pos] = codec.Entry{}
	}
}

// applyDeltasToBase replays deltas over a freshly-read base node, for the
// retrieve path on a MOD-status page.
func applyDeltasToBase(base codec.Node, deltas []Delta) codec.Node {
	n := base.Clone()
	for _, d := range deltas {
		present := d.Kind != DeltaBBox || d.BBox.Min != nil
		applyDeltaToNode(&n, d, present)
	}
	return n
}

// Retrieve returns the current logical node image for pageID, spec.md
// §4.10 retrieve.
func (b *Buffer) Retrieve(pageID uint32, height int) (codec.Node, error) {
	e, ok := b.entries[pageID]
	if !ok {
		return b.src.ReadNode(pageID, height)
	}
	switch e.Status {
	case StatusNew:
		return e.Node.Clone(), nil
	case StatusDel:
		return codec.Node{}, ErrDeletedPage
	default: // StatusMod
		base, err := b.src.ReadNode(pageID, height)
		if err != nil {
			return codec.Node{}, err
		}
		return applyDeltasToBase(base, e.Deltas), nil
	}
}

// writeThroughMod is the CAPACITY_REFUSED path: no buffering at all, the
// delta is materialized against disk immediately.
func (b *Buffer) writeThroughMod(pageID uint32, height int, d Delta, present bool) error {
	n, err := b.src.ReadNode(pageID, height)
	if err != nil {
		return err
	}
	applyDeltaToNode(&n, d, present)
	return b.src.WriteNode(pageID, n)
}

// Len reports the number of resident buffer entries.
func (b *Buffer) Len() int { return len(b.entries) }

// NeedsFlush reports whether any unit currently holds modified pages.
func (b *Buffer) NeedsFlush() bool {
	for _, u := range b.units {
		if u.totalMods > 0 {
			return true
		}
	}
	return false
}

// Flush selects one unit under the configured policy, materializes every
// page in it via Retrieve, writes them back in ascending page-id order
// (spec.md §5 "Page writes inside one batched flush are ordered by
// ascending page id"), appends one WAL FLUSH record, and drops the flushed
// pages from the RAM map. Returns the flushed page ids, or nil if nothing
// qualified.
func (b *Buffer) Flush() ([]uint32, error) {
	idx := b.selectUnit()
	if idx < 0 {
		return nil, nil
	}
	u := b.units[idx]
	ids := append([]uint32(nil), u.pages...)
	sortUint32(ids)

	for _, id := range ids {
		e, ok := b.entries[id]
		if ok && e.Status == StatusDel {
			// already logically freed; nothing to materialize, but the
			// FLUSH record below still must cover it so compaction drops
			// its earlier WAL entries.
			continue
		}
		height := 0
		if ok {
			height = e.Height
		}
		n, err := b.Retrieve(id, height)
		if err != nil {
			return nil, fmt.Errorf("fast: flush retrieve page %d: %w", id, err)
		}
		if err := b.src.WriteNode(id, n); err != nil {
			return nil, fmt.Errorf("fast: flush write page %d: %w", id, err)
		}
	}
	if _, err := b.log.Append(tagFlush, encodeFlush(ids)); err != nil {
		return nil, fmt.Errorf("fast: wal append FLUSH: %w", err)
	}

	for _, id := range ids {
		delete(b.entries, id)
		delete(b.unitOf, id)
	}
	b.units = append(b.units[:idx], b.units[idx+1:]...)
	for pid, uidx := range b.unitOf {
		if uidx > idx {
			b.unitOf[pid] = uidx - 1
		}
	}
	b.zlog.Debug("fast buffer flushed unit", zap.Int("pages", len(ids)))
	b.obs.Flush(ids)
	return ids, nil
}

// FlushAll runs Flush repeatedly until no unit has pending modifications,
// per spec.md §4.10's Flush-all policy description.
func (b *Buffer) FlushAll() error {
	for b.NeedsFlush() {
		if _, err := b.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func sortUint32(ids []uint32) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
