package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// hint is a sidecar file paired 1-1 with a segment, recording
// (key, file_id, offset) per live record written to that segment. It is
// smaller than its segment because it omits values, letting index rebuild
// on open run in O(n_keys) instead of O(n_bytes). Hints are advisory and
// reproducible: a missing or corrupt hint never blocks startup, it just
// costs a full segment rescan (see rebuild.go).
type hint struct {
	id   FileID
	file *os.File
	size int64
}

func hintPath(dir string, id FileID) string {
	return filepath.Join(dir, fmt.Sprintf("%d.hint", id))
}

func newHint(dir string, id FileID) (*hint, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := hintPath(dir, id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create hint %q: %w", path, err)
	}

	return &hint{id: id, file: f, size: 0}, nil
}

func openHint(dir string, id FileID) (*hint, error) {
	path := hintPath(dir, id)
	f, err := os.OpenFile(path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open hint %q: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek hint %q: %w", path, err)
	}

	return &hint{id: id, file: f, size: size}, nil
}

// insert appends one (key, position) record and returns its offset.
func (h *hint) insert(key []byte, pos Position) (Offset, error) {
	offset := h.size

	buf := make([]byte, 0, len(key)+3*10)
	buf = appendUvarint(buf, uint64(len(key)))
	buf = append(buf, key...)
	buf = appendUvarint(buf, pos.FileID)
	buf = appendUvarint(buf, pos.Offset)

	n, err := h.file.WriteAt(buf, offset)
	if err != nil {
		return 0, fmt.Errorf("write hint %d: %w", h.id, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("write hint %d: %w", h.id, io.ErrShortWrite)
	}

	h.size += int64(n)
	return Offset(offset), nil
}

// get performs a positional read of the hint record starting at offset and
// returns the Position it holds, mirroring segment.get's role: the same
// kind of direct, single-record accessor the public contract promises
// alongside insert/iter/destroy, for callers that already know an offset
// (from an iterator, say) and want the decoded position without rescanning.
func (h *hint) get(offset Offset) (Position, error) {
	_, pos, _, err := readHintRecord(h.file, int64(offset))
	if err != nil {
		return Position{}, fmt.Errorf("read hint %d at %d: %w", h.id, offset, err)
	}
	return pos, nil
}

func (h *hint) sync() error {
	if err := h.file.Sync(); err != nil {
		return fmt.Errorf("sync hint %d: %w", h.id, err)
	}
	return nil
}

func (h *hint) destroy() error {
	path := h.file.Name()
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("close hint %d: %w", h.id, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove hint %d: %w", h.id, err)
	}
	return nil
}

func (h *hint) close() error {
	return h.file.Close()
}

// hintEntry is one decoded (key, position) pair.
type hintEntry struct {
	Key      []byte
	Position Position
}

func (h *hint) iter() *hintIterator {
	return &hintIterator{h: h}
}

type hintIterator struct {
	h   *hint
	off int64
	err error
}

func (it *hintIterator) scan() (hintEntry, bool) {
	if it.err != nil || it.off >= it.h.size {
		return hintEntry{}, false
	}

	key, pos, n, err := readHintRecord(it.h.file, it.off)
	if err != nil {
		if !isEOF(err) {
			it.err = err
		}
		return hintEntry{}, false
	}

	it.off += n
	return hintEntry{Key: key, Position: pos}, true
}

func (it *hintIterator) Err() error { return it.err }

// readHintRecord decodes one (key, position) record at offset from an
// io.ReaderAt, the same positional-decode shape segment.go's readRecordLen
// uses, shared here by both hint.get and hintIterator.scan.
func readHintRecord(r io.ReaderAt, offset int64) (key []byte, pos Position, length int64, err error) {
	rr := newRecordReader(r, offset)

	keyLen, err := rr.readUvarint()
	if err != nil {
		return nil, Position{}, 0, err
	}
	key, err = rr.readExact(keyLen)
	if err != nil {
		return nil, Position{}, 0, err
	}

	fileID, err := rr.readUvarint()
	if err != nil {
		return nil, Position{}, 0, err
	}
	off, err := rr.readUvarint()
	if err != nil {
		return nil, Position{}, 0, err
	}

	n := int64(uvarintLen(keyLen)) + int64(keyLen) +
		int64(uvarintLen(fileID)) + int64(uvarintLen(off))
	return key, Position{FileID: fileID, Offset: off}, n, nil
}
