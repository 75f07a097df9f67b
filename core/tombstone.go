package core

import "bytes"

// tombstone is the sentinel value a deletion writes in place of a real
// value. User values may legally contain this exact byte sequence, so writes
// apply a reversible escape before append and reads apply the inverse —
// this keeps the on-disk grammar uniform (a segment is exactly a
// concatenation of records, no optional "deleted" flag) and makes
// delete-by-append identical to write-by-append on every I/O path.
var tombstone = []byte("<<>>")

var escapedTombstone = []byte("<<>><<>>")

// escapeTombstone doubles every occurrence of the tombstone sentinel in a
// user-supplied value so it can never be confused with an actual deletion
// marker. The expansion factor is bounded at 2x on the pathological
// all-sentinel input.
func escapeTombstone(value []byte) []byte {
	return bytes.ReplaceAll(value, tombstone, escapedTombstone)
}

// unescapeTombstone reverses escapeTombstone.
func unescapeTombstone(value []byte) []byte {
	return bytes.ReplaceAll(value, escapedTombstone, tombstone)
}

// isTombstone reports whether a raw stored value is exactly the (unescaped)
// tombstone sentinel, i.e. the key it belongs to is deleted.
func isTombstone(raw []byte) bool {
	return bytes.Equal(raw, tombstone)
}
