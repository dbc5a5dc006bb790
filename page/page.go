// Package page implements fixed-size page I/O against a backing store,
// with an optional page-aligned "direct" access mode, grounded on the
// teacher's btree.Pager and, for aligned direct I/O, the corpus's own
// disk-engine repositories that reach for golang.org/x/sys/unix.
package page

import "errors"

// ID identifies a page within a store. Page 0 has no reserved meaning:
// geoindex keeps tree metadata in a separate header file, so page 0 is
// available to the tree like any other page.
type ID uint32

// NoPage is the sentinel for "not a page id".
const NoPage ID = 0xFFFFFFFF

var (
	// ErrIO wraps any fatal I/O failure. Per spec.md §7 these are never
	// retried and unwind through the calling operation.
	ErrIO = errors.New("page: fatal i/o error")
	// ErrMisaligned is returned when a Direct-mode buffer isn't aligned
	// to the page size.
	ErrMisaligned = errors.New("page: buffer not aligned for direct i/o")
	// ErrClosed is returned by any call made after Close.
	ErrClosed = errors.New("page: store is closed")
)

// AccessMode selects whether reads/writes go through the OS page cache
// (Normal) or bypass it with aligned, unbuffered I/O (Direct).
type AccessMode int

const (
	Normal AccessMode = iota
	Direct
)

// StorageKind labels the backing medium. Store records it but behaves the
// same for both kinds: both issue the same I/O and both count program
// cycles (ProgramCycles), which the benchmark harness reads to approximate
// flash write amplification.
type StorageKind int

const (
	Disk StorageKind = iota
	FlashSim
)
