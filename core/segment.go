package core

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// segment is an append-only file of length-prefixed records:
//
//	varint keySize | key | varint valSize | value | varint checksum
//
// where checksum is checksum32(key||value). A segment file is a bare
// concatenation of such records — no header, no trailer. Record boundaries
// are only ever recovered by walking from offset 0, bounded by the in-memory
// size counter rather than the file's actual on-disk length, so a failed
// append never resurrects a half-written tail record.
type segment struct {
	id   FileID
	dir  string
	file *os.File
	size int64 // size of the logically complete, readable portion
}

func segmentPath(dir string, id FileID) string {
	return filepath.Join(dir, fmt.Sprintf("%d.data", id))
}

// newSegment creates a fresh, empty, writable segment under dir.
func newSegment(dir string, id FileID) (*segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := segmentPath(dir, id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create segment %q: %w", path, err)
	}

	return &segment{id: id, dir: dir, file: f, size: 0}, nil
}

// openSegment reopens an existing segment read-only; size is the on-disk
// length until the caller (index rebuild) adjusts it down to the last valid
// record boundary.
func openSegment(dir string, id FileID) (*segment, error) {
	path := segmentPath(dir, id)
	f, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open segment %q: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek segment %q: %w", path, err)
	}

	return &segment{id: id, dir: dir, file: f, size: size}, nil
}

// truncate drops the segment's on-disk tail back to n bytes, used once on
// open when a trailing record was found to be partially written. It works by
// path, since a segment reopened on open holds only a read-only handle.
func (s *segment) truncate(n int64) error {
	if err := os.Truncate(s.file.Name(), n); err != nil {
		return fmt.Errorf("truncate segment %d: %w", s.id, err)
	}
	s.size = n
	return nil
}

// get performs a positional read of the record starting at offset and
// returns its raw stored value (tombstone interpretation is the Store's
// job). Checksum mismatch is a hard error: the reader must never return a
// value it cannot verify.
func (s *segment) get(offset Offset) ([]byte, error) {
	_, value, err := readRecord(s.file, int64(offset))
	if err != nil {
		return nil, fmt.Errorf("read segment %d at %d: %w", s.id, offset, err)
	}
	return value, nil
}

// insert appends a single record and returns the offset it was written at.
// The size counter only advances after a fully successful write, so a short
// write never leaves size diverged from what's actually on disk; iteration
// and future appends are bounded by size, not by stat-ing the file.
func (s *segment) insert(key, value []byte) (Offset, error) {
	offset := s.size

	buf := encodeRecord(key, value)
	n, err := s.file.WriteAt(buf, offset)
	if err != nil {
		return 0, fmt.Errorf("write segment %d: %w", s.id, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("write segment %d: %w", s.id, io.ErrShortWrite)
	}

	s.size += int64(n)
	return Offset(offset), nil
}

func (s *segment) sync() error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync segment %d: %w", s.id, err)
	}
	return nil
}

// destroy closes and unlinks the segment file. Only safe to call once.
func (s *segment) destroy() error {
	path := s.file.Name()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close segment %d: %w", s.id, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove segment %d: %w", s.id, err)
	}
	return nil
}

func (s *segment) close() error {
	return s.file.Close()
}

// segmentEntry is one decoded record plus the offset it starts at.
type segmentEntry struct {
	Offset Offset
	Key    []byte
	Value  []byte
}

// iter walks the segment's records in insertion order, bounded by size. Each
// call to scan() opens a fresh positional reader at the current cursor —
// iteration never holds a shared seek position, so it can safely run
// alongside concurrent Get calls on the same file.
func (s *segment) iter() *segmentIterator {
	return &segmentIterator{seg: s}
}

type segmentIterator struct {
	seg *segment
	off int64
	err error
}

// scan advances to the next record, returning false at end-of-segment or on
// error (check Err after a false return). A truncated final record — a
// varint or payload read that runs past the recorded size — ends iteration
// without error, consistent with the spec's "truncated final record
// terminates recovery without raising."
func (it *segmentIterator) scan() (segmentEntry, bool) {
	if it.err != nil || it.off >= it.seg.size {
		return segmentEntry{}, false
	}

	key, value, n, err := readRecordLen(it.seg.file, it.off)
	if err != nil {
		if !isEOF(err) {
			it.err = err
		}
		return segmentEntry{}, false
	}

	entry := segmentEntry{Offset: Offset(it.off), Key: key, Value: value}
	it.off += n
	return entry, true
}

func (it *segmentIterator) Err() error { return it.err }

// encodeRecord builds the on-disk byte representation of one record.
func encodeRecord(key, value []byte) []byte {
	cs := checksum32(append(append([]byte{}, key...), value...))

	buf := make([]byte, 0, len(key)+len(value)+3*binary.MaxVarintLen64)
	buf = appendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)
	buf = appendUvarint(buf, uint64(len(value)))
	buf = append(buf, value...)
	buf = appendUvarint(buf, uint64(cs))
	return buf
}

// readRecord decodes one record at offset and verifies its checksum.
func readRecord(r io.ReaderAt, offset int64) (key, value []byte, err error) {
	key, value, _, err = readRecordLen(r, offset)
	return key, value, err
}

// readRecordLen decodes one record at offset, verifies its checksum, and
// additionally reports the record's total encoded length so scanners can
// advance their cursor without re-deriving it from the decoded lengths.
func readRecordLen(r io.ReaderAt, offset int64) (key, value []byte, length int64, err error) {
	rr := newRecordReader(r, offset)

	keyLen, err := rr.readUvarint()
	if err != nil {
		return nil, nil, 0, err
	}
	key, err = rr.readExact(keyLen)
	if err != nil {
		return nil, nil, 0, err
	}

	valLen, err := rr.readUvarint()
	if err != nil {
		return nil, nil, 0, err
	}
	value, err = rr.readExact(valLen)
	if err != nil {
		return nil, nil, 0, err
	}

	wantCS, err := rr.readUvarint()
	if err != nil {
		return nil, nil, 0, err
	}

	gotCS := checksum32(append(append([]byte{}, key...), value...))
	if uint64(gotCS) != wantCS {
		return nil, nil, 0, fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, wantCS, gotCS)
	}

	n := int64(uvarintLen(keyLen)) + int64(keyLen) +
		int64(uvarintLen(valLen)) + int64(valLen) +
		int64(uvarintLen(wantCS))
	return key, value, n, nil
}
