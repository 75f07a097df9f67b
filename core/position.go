package core

// FileID uniquely identifies one segment and its paired hint file.
//
// The id space is split into three disjoint ranges: a bootstrap id of 0,
// handed out only once by New (see bootstrap in rebuild.go), a
// live-allocation range [1, MaxFileID) issued monotonically as segments
// roll over, and a merge-output range starting at MinMergeFileID, used
// transiently while a merge is writing new segments before they're renamed
// back over the ids they replace.
type FileID = uint64

// Offset is the byte position of a record's start within its segment file.
type Offset = uint64

// Position is a pointer into the log: which segment, and where in it. Every
// index slot always points at a genuine, readable record — a deleted key's
// slot points at its tombstone record, not at a sentinel — because file id 0
// is a legal, in-use id (New's bootstrap segment), so a reserved (0, 0)
// "not-exist" position would be indistinguishable from that segment's first
// real record. Deletion is recognized by the stored value (see
// isTombstone), never by comparing a Position against a sentinel.
type Position struct {
	FileID FileID
	Offset Offset
}

// NotExist is a Position value no active or older index slot is ever set
// to; kept only as the zero Position literal used by one test
// (TestHintInsertAndIter) that needs an arbitrary placeholder position, mirroring the original Rust
// source's own Position::not_exist(), which likewise went unused outside of
// one dead method.
var NotExist = Position{FileID: 0, Offset: 0}

// IsNotExist reports whether p equals the NotExist literal. Not used on any
// index lookup path — see the Position doc comment above.
func (p Position) IsNotExist() bool {
	return p == NotExist
}
