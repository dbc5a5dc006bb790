// Package fast implements the FAST buffer manager (spec.md §4.10): a
// log-structured write-absorbing buffer that stores, per page, either a
// newly created node, an ordered list of entry-level deltas, or a
// deletion marker, backed by a write-ahead log for crash recovery.
package fast

import (
	"errors"

	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/geom"
)

// Status is the lifecycle state of one page's buffer entry (spec.md §3).
type Status int

const (
	StatusNew Status = iota
	StatusMod
	StatusDel
)

// DeltaKind distinguishes the four entry-level delta types spec.md §3/§4.10
// defines.
type DeltaKind int

const (
	DeltaBBox DeltaKind = iota
	DeltaPointer
	DeltaLHV
	DeltaHole
)

// Delta is one pending entry-level change to a MOD-status page.
type Delta struct {
	Kind     DeltaKind
	Position int

	BBox    geom.BBox // meaningful for DeltaBBox
	Pointer uint32    // meaningful for DeltaPointer
	LHV     uint64    // meaningful for DeltaLHV
	// DeltaHole carries no payload: it marks Position as vacated.
}

// Entry is the per-page buffer record, spec.md §3 "FAST buffer entry".
type Entry struct {
	Status   Status
	Height   int
	ModCount int
	LastTouchNanos int64

	Node   codec.Node // payload when Status == StatusNew
	Deltas []Delta    // payload when Status == StatusMod
}

var (
	// ErrDeletedPage is returned by Retrieve for a DEL-status page, per
	// spec.md §4.10 ("page should not be referenced").
	ErrDeletedPage = errors.New("fast: page should not be referenced")
	// ErrCapacityRefused signals the buffer is configured too small to
	// hold even one page, per spec.md §7 CAPACITY_REFUSED.
	ErrCapacityRefused = errors.New("fast: max_capacity smaller than one page")
)
