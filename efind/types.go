package efind

import (
	"errors"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// Status mirrors the FAST page-status model (SPEC_FULL.md §4.8 / spec.md
// §4.11): a refinement with the same three states, but eFIND's write
// buffer never materializes a full node even for NEW pages — the delta
// list alone reconstructs it.
type Status int

const (
	StatusNew Status = iota
	StatusMod
	StatusDel
)

// DeltaKind distinguishes the entry-level change a Delta records.
type DeltaKind int

const (
	DeltaInsert DeltaKind = iota
	DeltaModBBox
	DeltaModPointer
	DeltaModLHV
	DeltaDeleteEntry
)

// Delta is one ordered entry-level change against a page's base image.
// DeltaInsert carries Entry; DeltaDeleteEntry carries no payload beyond
// Position; the Mod* kinds carry the single changed field.
type Delta struct {
	Kind     DeltaKind
	Position int
	Entry    codec.Entry
	BBox     geom.BBox
	Pointer  uint32
	LHV      uint64
}

// WEntry is the write buffer's bookkeeping for one page: status, the
// height it lives at, and the ordered delta list that, replayed against a
// base image (empty for NEW, read-buffer-sourced otherwise), reconstructs
// its current content.
type WEntry struct {
	Status         Status
	Height         int
	ModCount       int
	LastTouchNanos int64
	Deltas         []Delta
}

var (
	// ErrDeletedPage is returned by Retrieve for a page with Status ==
	// StatusDel.
	ErrDeletedPage = errors.New("efind: page is deleted in write buffer")
)
