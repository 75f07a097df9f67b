package core

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTombstoneEscapeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("plain value"),
		tombstone,
		append(append([]byte("a"), tombstone...), []byte("b")...),
		bytes.Repeat(tombstone, 5),
		[]byte("<<>"),  // partial sentinel, must pass through untouched
		[]byte("<<>>>"), // sentinel plus trailing byte
	}

	for _, b := range cases {
		got := unescapeTombstone(escapeTombstone(b))
		if diff := cmp.Diff(b, got); diff != "" {
			t.Errorf("round trip mismatch for %q (-want +got):\n%s", b, diff)
		}
	}
}

func TestIsTombstone(t *testing.T) {
	if !isTombstone(tombstone) {
		t.Errorf("isTombstone(tombstone) = false, want true")
	}
	if isTombstone(escapedTombstone) {
		t.Errorf("isTombstone(escapedTombstone) = true, want false")
	}
	if isTombstone([]byte("anything else")) {
		t.Errorf("isTombstone(other) = true, want false")
	}
}
