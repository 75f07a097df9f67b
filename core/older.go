package core

import "fmt"

// olderData is the immutable tier: every segment+hint pair that has been
// fully flushed out of active duty, plus an aggregate index covering only
// the keys whose latest version lives in one of those segments. Everything
// here is immutable once added, except for wholesale replacement by merge.
type olderData struct {
	segments map[FileID]*segment
	hints    map[FileID]*hint
	index    map[string]Position
}

func newOlderData() *olderData {
	return &olderData{
		segments: make(map[FileID]*segment),
		hints:    make(map[FileID]*hint),
		index:    make(map[string]Position),
	}
}

// get mirrors activeData.get: every index slot, live or deleted, points at
// a genuine on-disk record, so this always performs the positional read and
// leaves tombstone classification to the caller.
func (o *olderData) get(key []byte) ([]byte, bool, error) {
	pos, ok := o.index[string(key)]
	if !ok {
		return nil, false, nil
	}

	seg, ok := o.segments[pos.FileID]
	if !ok {
		return nil, true, nil
	}
	v, err := seg.get(pos.Offset)
	return v, true, err
}

func (o *olderData) addSegment(seg *segment, h *hint) error {
	if seg.id != h.id {
		return fmt.Errorf("bitkv: segment/hint id mismatch: %d != %d", seg.id, h.id)
	}
	o.segments[seg.id] = seg
	o.hints[h.id] = h
	return nil
}

// removeSegment destroys and forgets the segment+hint pair for id. Both are
// destroyed together: §3 invariant 5 requires every older segment to have
// exactly one paired hint, destroyed together.
func (o *olderData) removeSegment(id FileID) error {
	if seg, ok := o.segments[id]; ok {
		if err := seg.destroy(); err != nil {
			return err
		}
		delete(o.segments, id)
	}
	if h, ok := o.hints[id]; ok {
		if err := h.destroy(); err != nil {
			return err
		}
		delete(o.hints, id)
	}
	return nil
}

func (o *olderData) keys(yield func(string)) {
	for k := range o.index {
		yield(k)
	}
}

// extend folds a batch of newly-immutable segments/hints/index entries into
// olderData, used both by Store.Set's opportunistic pending drain and by
// index rebuild on open.
func (o *olderData) extend(segs map[FileID]*segment, hints map[FileID]*hint, index map[string]Position) {
	for id, seg := range segs {
		o.segments[id] = seg
	}
	for id, h := range hints {
		o.hints[id] = h
	}
	for k, v := range index {
		o.index[k] = v
	}
}
