package core

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/zeebo/xxh3"
)

// maxSectionLen bounds the io.SectionReader opened at a given offset. It is
// unbounded in practice — callers stop decoding based on record framing, not
// on section length — mirroring the teacher's recordScanner, which opens a
// SectionReader over "the rest of the file" rather than touching the shared
// file handle's seek cursor. Positional reads are mandatory here: multiple
// goroutines may be reading the same active segment concurrently, and a
// shared seek cursor would race between them.
const maxSectionLen = 1<<63 - 1

// recordReader decodes varint-framed fields from a fixed starting offset in
// an io.ReaderAt, without ever touching that ReaderAt's shared state.
type recordReader struct {
	br *bufio.Reader
}

func newRecordReader(r io.ReaderAt, offset int64) *recordReader {
	sr := io.NewSectionReader(r, offset, maxSectionLen)
	return &recordReader{br: bufio.NewReader(sr)}
}

func (rr *recordReader) readUvarint() (uint64, error) {
	return binary.ReadUvarint(rr.br)
}

func (rr *recordReader) readExact(n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rr.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// appendUvarint appends the varint encoding of v to buf and returns the
// extended slice, matching binary.AppendUvarint's contract exactly; kept as
// a named wrapper so record encoders read as a pipeline of appends.
func appendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// uvarintLen returns the number of bytes v would occupy varint-encoded,
// needed to advance a scanning cursor without re-decoding.
func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// checksum32 is the low 32 bits of the xxh3 hash of data, standing in for
// "32-bit xxhash, seed 0": xxh3.Hash is xxh3's default unkeyed hash, which is
// the closest Go equivalent the pack offers to an explicit seed-0 xxhash.
func checksum32(data []byte) uint32 {
	return uint32(xxh3.Hash(data))
}

// isEOF reports whether err is an ordinary end-of-stream signal rather than
// a real I/O failure. A bare io.EOF means nothing at all was read (a clean
// boundary); io.ErrUnexpectedEOF means a partial read — in record-scanning
// context both indicate a truncated tail, not corruption, and are treated
// the same: stop scanning, keep what was already decoded.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
