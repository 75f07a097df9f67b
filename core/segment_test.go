package core

import (
	"errors"
	"testing"
)

func TestSegmentInsertAndGet(t *testing.T) {
	dir := t.TempDir()
	seg, err := newSegment(dir, 1)
	if err != nil {
		t.Fatalf("newSegment: %v", err)
	}
	defer seg.close()

	off, err := seg.insert([]byte("key"), []byte("value"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := seg.get(off)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("get = %q, want %q", got, "value")
	}
}

func TestSegmentIterOrder(t *testing.T) {
	dir := t.TempDir()
	seg, err := newSegment(dir, 1)
	if err != nil {
		t.Fatalf("newSegment: %v", err)
	}
	defer seg.close()

	want := []string{"a", "b", "c"}
	for _, k := range want {
		if _, err := seg.insert([]byte(k), []byte("v-"+k)); err != nil {
			t.Fatalf("insert(%q): %v", k, err)
		}
	}

	var got []string
	it := seg.iter()
	for {
		entry, ok := it.scan()
		if !ok {
			break
		}
		got = append(got, string(entry.Key))
	}
	if it.Err() != nil {
		t.Fatalf("iter: %v", it.Err())
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSegmentChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	seg, err := newSegment(dir, 1)
	if err != nil {
		t.Fatalf("newSegment: %v", err)
	}
	defer seg.close()

	off, err := seg.insert([]byte("key"), []byte("value"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Corrupt the first byte of the value payload in place, leaving the
	// key/value length prefixes untouched so decoding proceeds all the way
	// to the checksum comparison rather than failing on a length mismatch.
	// Record layout: 1-byte keylen | "key" | 1-byte vallen | "value" | cs.
	// The value payload starts at offset+5.
	if _, err := seg.file.WriteAt([]byte("X"), int64(off)+5); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	if _, err := seg.get(off); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("get on corrupted record = %v, want ErrChecksumMismatch", err)
	}
}

func TestSegmentIterStopsAtTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	seg, err := newSegment(dir, 1)
	if err != nil {
		t.Fatalf("newSegment: %v", err)
	}
	defer seg.close()

	if _, err := seg.insert([]byte("x"), []byte("y")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	goodSize := seg.size

	// Simulate a half-written second record: append a few bytes that look
	// like the start of a varint-prefixed record but cut off mid-key.
	if _, err := seg.file.WriteAt([]byte{0x05, 'a', 'b'}, goodSize); err != nil {
		t.Fatalf("append partial: %v", err)
	}
	seg.size = goodSize + 3 // pretend the partial write "completed"

	var entries int
	it := seg.iter()
	for {
		_, ok := it.scan()
		if !ok {
			break
		}
		entries++
	}
	if it.Err() != nil {
		t.Fatalf("iter on truncated tail returned error: %v", it.Err())
	}
	if entries != 1 {
		t.Errorf("entries = %d, want 1 (truncated tail should stop iteration without error)", entries)
	}
}
