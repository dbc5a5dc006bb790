// Package wal implements the append-only write-ahead log record framing
// shared by the FAST and eFIND buffers (spec.md §3 "WAL record", §6 "WAL
// record format"). Each record begins with the byte offset of the
// previous record so the file can be walked in reverse during recovery
// and compaction; body encoding and length-framing are owned by the
// caller (fast/efind), since the two schemes' bodies differ.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

var (
	ErrCorrupt = errors.New("wal: corrupt record")
	ErrClosed  = errors.New("wal: log is closed")
)

// RecordHeaderSize is the fixed-size prefix of every record: prev offset
// (u64) + tag (u8).
const RecordHeaderSize = 8 + 1

// BodyLengthFunc computes how many body bytes follow a record's header,
// given the tag and a reader positioned to read the body region. FAST and
// eFIND each supply their own, since their bodies are tag-specific and
// variable-length (spec.md §6).
type BodyLengthFunc func(f *os.File, bodyStart int64, tag byte) (int, error)

// Log is an append-only WAL file. It tracks the offset of the last record
// appended so each new record can embed it, per spec.md §3/§6.
type Log struct {
	file       *os.File
	path       string
	lastOffset int64 // offset of the most recently appended record, or -1
	size       int64 // current file size in bytes
	maxSize    int64 // log_size: triggers Compact when threatened
	bodyLen    BodyLengthFunc
	log        *zap.Logger
	closed     bool
}

// Open opens or creates the WAL file at path. maxSize is spec.md's
// `log_size`; 0 disables the size-triggered compaction check (callers
// still may call Compact explicitly). bodyLen decodes record bodies when
// reopening an existing, non-empty log.
func Open(path string, maxSize int64, bodyLen BodyLengthFunc, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	l := &Log{file: f, path: path, lastOffset: -1, size: info.Size(), maxSize: maxSize, bodyLen: bodyLen, log: logger}
	if info.Size() > 0 {
		last, err := l.findLastOffset()
		if err != nil {
			f.Close()
			return nil, err
		}
		l.lastOffset = last
	}
	return l, nil
}

// findLastOffset scans forward once at open time to locate the offset of
// the final record in the file (used only when reopening an existing log;
// new logs start empty).
func (l *Log) findLastOffset() (int64, error) {
	r := &Reader{file: l.file, bodyLen: l.bodyLen}
	var offset int64 = -1
	var next int64
	for {
		rec, n, err := r.readForward(next)
		if err == io.EOF {
			break
		}
		if err != nil {
			return -1, err
		}
		offset = rec.SelfOffset
		next = n
	}
	return offset, nil
}

// Append writes one record (tag + body) and returns its offset. The
// record's embedded "previous offset" links to whatever was last
// appended, forming the reverse-traversable chain spec.md §3 describes.
func (l *Log) Append(tag byte, body []byte) (int64, error) {
	if l.closed {
		return 0, ErrClosed
	}
	self := l.size
	buf := make([]byte, RecordHeaderSize+len(body))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(l.lastOffset))
	buf[8] = tag
	copy(buf[9:], body)

	if _, err := l.file.WriteAt(buf, self); err != nil {
		l.log.Error("wal append failed", zap.Error(err))
		return 0, fmt.Errorf("wal: append: %w", err)
	}
	l.size += int64(len(buf))
	l.lastOffset = self
	return self, nil
}

// Sync fsyncs the WAL file.
func (l *Log) Sync() error {
	if l.closed {
		return ErrClosed
	}
	return l.file.Sync()
}

// Size returns the current file size in bytes.
func (l *Log) Size() int64 { return l.size }

// LastOffset returns the offset of the most recently appended record, or
// -1 if the log is empty.
func (l *Log) LastOffset() int64 { return l.lastOffset }

// NearCapacity reports whether the next append of approxRecordSize bytes
// would exceed the configured log_size, signaling Compact should run.
func (l *Log) NearCapacity(approxRecordSize int) bool {
	if l.maxSize <= 0 {
		return false
	}
	return l.size+int64(approxRecordSize) > l.maxSize
}

// Path returns the backing file path, for callers implementing
// rename-based compaction.
func (l *Log) Path() string { return l.path }

// Reader opens a fresh read handle onto this log's current contents, for
// a reverse recovery/compaction scan.
func (l *Log) Reader() (*Reader, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, bodyLen: l.bodyLen}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Record is one decoded WAL entry.
type Record struct {
	SelfOffset int64
	PrevOffset int64
	Tag        byte
	Body       []byte
}

// Reader supports both the forward scan Open uses internally and the
// reverse scan recovery/compaction need.
type Reader struct {
	file    *os.File
	bodyLen BodyLengthFunc
}

func (r *Reader) Close() error { return r.file.Close() }

// readForward reads the record starting at byte offset off, returning it
// and the offset just past it.
func (r *Reader) readForward(off int64) (Record, int64, error) {
	header := make([]byte, RecordHeaderSize)
	n, err := r.file.ReadAt(header, off)
	if err == io.EOF && n == 0 {
		return Record{}, 0, io.EOF
	}
	if err != nil && err != io.EOF {
		return Record{}, 0, err
	}
	if n < RecordHeaderSize {
		return Record{}, 0, io.EOF
	}
	prev := int64(binary.LittleEndian.Uint64(header[0:8]))
	tag := header[8]
	bodyLen, err := r.bodyLen(r.file, off+RecordHeaderSize, tag)
	if err != nil {
		return Record{}, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := r.file.ReadAt(body, off+RecordHeaderSize); err != nil {
			return Record{}, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	rec := Record{SelfOffset: off, PrevOffset: prev, Tag: tag, Body: body}
	return rec, off + RecordHeaderSize + int64(bodyLen), nil
}

// ReadAt decodes the full record at the given offset, for random access
// during reverse traversal once SelfOffset/PrevOffset chains are known.
func (r *Reader) ReadAt(off int64) (Record, error) {
	rec, _, err := r.readForward(off)
	return rec, err
}

// WalkReverse starts from lastOffset and calls fn for each record walking
// backward via PrevOffset until offset -1 is reached or fn returns false.
func WalkReverse(r *Reader, lastOffset int64, fn func(Record) bool) error {
	offset := lastOffset
	for offset >= 0 {
		rec, err := r.ReadAt(offset)
		if err != nil {
			return err
		}
		if !fn(rec) {
			return nil
		}
		offset = rec.PrevOffset
	}
	return nil
}
