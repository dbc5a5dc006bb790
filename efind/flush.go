package efind

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// nextXorshift steps a small deterministic PRNG, used only to pick the
// padding pages for temporal-control fill; avoids math/rand's global lock
// on a single-threaded hot path.
func (b *Buffer) nextXorshift() uint64 {
	x := b.rngSeed
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	b.rngSeed = x
	return x
}

// selectFlushSet picks the page with the highest modification count, then
// extends it per SPEC_FULL.md §4.8 "temporal grouping": Sequential pulls
// in write-buffer-resident neighbors with contiguous ids; Stride pulls in
// neighbors cfg.Stride apart; SeqAndStride unions both. If the result is
// still short of MinFlushSize, random modified pages pad it out
// ("temporal control filled").
func (b *Buffer) selectFlushSet() []uint32 {
	if len(b.entries) == 0 {
		return nil
	}
	var p uint32
	bestMod := -1
	for id, e := range b.entries {
		if e.ModCount > bestMod || (e.ModCount == bestMod && id < p) {
			bestMod = e.ModCount
			p = id
		}
	}

	set := map[uint32]bool{p: true}
	switch b.cfg.GroupingMode {
	case Sequential:
		b.extendSequential(p, set)
	case Stride:
		b.extendStride(p, set)
	case SeqAndStride:
		b.extendSequential(p, set)
		b.extendStride(p, set)
	}

	if len(set) < b.cfg.MinFlushSize {
		b.padWithRandom(set)
	}

	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *Buffer) extendSequential(p uint32, set map[uint32]bool) {
	for id := p + 1; ; id++ {
		if _, ok := b.entries[id]; !ok {
			break
		}
		set[id] = true
	}
	for id := p - 1; id != ^uint32(0); id-- {
		if _, ok := b.entries[id]; !ok {
			break
		}
		set[id] = true
		if id == 0 {
			break
		}
	}
}

func (b *Buffer) extendStride(p uint32, set map[uint32]bool) {
	s := uint32(b.cfg.Stride)
	if s == 0 {
		return
	}
	for id := p + s; ; id += s {
		if _, ok := b.entries[id]; !ok {
			break
		}
		set[id] = true
	}
	for id := p; id >= s; id -= s {
		cand := id - s
		if _, ok := b.entries[cand]; !ok {
			break
		}
		set[cand] = true
	}
}

func (b *Buffer) padWithRandom(set map[uint32]bool) {
	candidates := make([]uint32, 0, len(b.entries))
	for id := range b.entries {
		if !set[id] {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for len(set) < b.cfg.MinFlushSize && len(candidates) > 0 {
		idx := int(b.nextXorshift() % uint64(len(candidates)))
		set[candidates[idx]] = true
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}
}

// Flush writes the selected flush set back through Source in ascending
// page-id order, records one WAL FLUSH, and drops the flushed pages from
// the write buffer. DEL-status pages are dropped without a write.
func (b *Buffer) Flush() ([]uint32, error) {
	ids := b.selectFlushSet()
	if len(ids) == 0 {
		return nil, nil
	}
	for _, id := range ids {
		e, ok := b.entries[id]
		if ok && e.Status == StatusDel {
			continue
		}
		height := 0
		if ok {
			height = e.Height
		}
		n, err := b.Retrieve(id, height)
		if err != nil {
			return nil, fmt.Errorf("efind: flush retrieve page %d: %w", id, err)
		}
		if err := b.src.WriteNode(id, n); err != nil {
			return nil, fmt.Errorf("efind: flush write page %d: %w", id, err)
		}
		b.read.PutClean(id, n)
	}
	if b.log != nil {
		if _, err := b.log.Append(tagFlush, encodeFlush(ids)); err != nil {
			return nil, fmt.Errorf("efind: wal append FLUSH: %w", err)
		}
	}
	for _, id := range ids {
		delete(b.entries, id)
	}
	if b.zlog != nil {
		b.zlog.Debug("efind buffer flushed set", zap.Int("pages", len(ids)))
	}
	b.obs.Flush(ids)
	return ids, nil
}

// FlushAll drains the entire write buffer in batches of up to MinFlushSize
// pages, appending one FLUSH record per batch, so that afterwards every
// logged record is covered by a FLUSH and the WAL's effective state is
// empty.
func (b *Buffer) FlushAll() error {
	for len(b.entries) > 0 {
		var batch []uint32
		for id := range b.entries {
			batch = append(batch, id)
			if len(batch) >= b.cfg.MinFlushSize {
				break
			}
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })
		for _, id := range batch {
			e := b.entries[id]
			if e.Status == StatusDel {
				delete(b.entries, id)
				continue
			}
			n, err := b.Retrieve(id, e.Height)
			if err != nil {
				return err
			}
			if err := b.src.WriteNode(id, n); err != nil {
				return err
			}
			b.read.PutClean(id, n)
			delete(b.entries, id)
		}
		if b.log != nil {
			if _, err := b.log.Append(tagFlush, encodeFlush(batch)); err != nil {
				return fmt.Errorf("efind: wal append FLUSH: %w", err)
			}
		}
		b.obs.Flush(batch)
	}
	return nil
}
