package core

// activeData is the writable tier: the sole writable segment and its hint,
// an index over that segment, and a "pending" cohort of segments that have
// been rotated out of active duty but not yet handed over to olderData.
//
// Locking is not this type's concern — Store wraps an activeData in a
// sync.RWMutex and serializes access to it, matching spec.md §5's "two
// independent reader-writer locks" split.
type activeData struct {
	segment *segment
	hint    *hint
	index   map[string]Position

	pendingSegments map[FileID]*segment
	pendingHints    map[FileID]*hint
	pendingIndex    map[string]Position
}

func newActiveData(seg *segment, h *hint) *activeData {
	return &activeData{
		segment:         seg,
		hint:            h,
		index:           make(map[string]Position),
		pendingSegments: make(map[FileID]*segment),
		pendingHints:    make(map[FileID]*hint),
		pendingIndex:    make(map[string]Position),
	}
}

// get looks up key in the active index first, then the pending cohort. Every
// index slot reached here points at a genuine on-disk record — including a
// deleted key's, which points at its tombstone record (see delete, below) —
// so this always performs the positional read and hands the raw bytes back
// for the caller (Store.Get) to classify via isTombstone. Mirrors the
// original Rust ActiveData::get, which never compares a position against a
// not-exist sentinel at all: deletion there, as here, is recognized purely
// from the stored value, not from the index.
func (a *activeData) get(key []byte) ([]byte, bool, error) {
	if pos, ok := a.index[string(key)]; ok {
		v, err := a.segment.get(pos.Offset)
		return v, true, err
	}

	if pos, ok := a.pendingIndex[string(key)]; ok {
		seg, ok := a.pendingSegments[pos.FileID]
		if !ok {
			return nil, true, nil
		}
		v, err := seg.get(pos.Offset)
		return v, true, err
	}

	return nil, false, nil
}

// insert appends to the active segment, records a matching hint entry, and
// updates the active index. It reports whether the active segment has now
// crossed maxSize and should be rotated.
func (a *activeData) insert(key, value []byte, maxSize uint64) (toRotate bool, err error) {
	offset, err := a.segment.insert(key, value)
	if err != nil {
		return false, err
	}

	pos := Position{FileID: a.segment.id, Offset: offset}
	if _, err := a.hint.insert(key, pos); err != nil {
		return false, err
	}

	a.index[string(key)] = pos

	return uint64(a.segment.size) >= maxSize, nil
}

// delete appends a tombstone record and indexes it exactly like insert
// would index a live value — at its own real position, not the not-exist
// sentinel. A deleted key's index slot must still resolve to an actual
// on-disk record: get() no longer special-cases deletion at the index
// layer, so every slot, live or deleted, has to be a genuine readable
// position for the lookup to work at all (this is also what lets merge
// carry a still-live tombstone forward exactly like any other record,
// instead of needing special-case handling).
func (a *activeData) delete(key, tombstoneValue []byte, maxSize uint64) (toRotate bool, err error) {
	offset, err := a.segment.insert(key, tombstoneValue)
	if err != nil {
		return false, err
	}

	pos := Position{FileID: a.segment.id, Offset: offset}
	if _, err := a.hint.insert(key, pos); err != nil {
		return false, err
	}

	a.index[string(key)] = pos

	return uint64(a.segment.size) >= maxSize, nil
}

// rotate drains the active index into the pending cohort, moves the active
// segment+hint into pending, and installs a fresh writable pair. Precondition
// (not checked here; the caller creates both under one id): newSeg.id ==
// newHint.id.
func (a *activeData) rotate(newSeg *segment, newHint *hint) {
	for k, v := range a.index {
		a.pendingIndex[k] = v
	}
	a.index = make(map[string]Position)

	a.pendingSegments[a.segment.id] = a.segment
	a.pendingHints[a.hint.id] = a.hint

	a.segment = newSeg
	a.hint = newHint
}

// keys returns the lazy union of active and pending index keys. Callers
// that need de-duplication (the same key can appear in both during the
// window between rotate and drain) wrap this, see keys.go.
func (a *activeData) keys(yield func(string)) {
	for k := range a.index {
		yield(k)
	}
	for k := range a.pendingIndex {
		yield(k)
	}
}

// drainPending empties the pending cohort, handing its contents to the
// caller (Store.Set, which folds them into olderData). Returns nil maps when
// there's nothing to drain.
func (a *activeData) drainPending() (map[FileID]*segment, map[FileID]*hint, map[string]Position) {
	if len(a.pendingSegments) == 0 {
		return nil, nil, nil
	}

	segs, hints, idx := a.pendingSegments, a.pendingHints, a.pendingIndex
	a.pendingSegments = make(map[FileID]*segment)
	a.pendingHints = make(map[FileID]*hint)
	a.pendingIndex = make(map[string]Position)
	return segs, hints, idx
}

// reclaimPending folds an already-drained cohort back into the pending
// maps, the inverse of drainPending. Store does not call it: its drain only
// pops the cohort once OlderData's lock has been acquired (see
// Store.drainLocked), so there is never a cohort to put back.
func (a *activeData) reclaimPending(segs map[FileID]*segment, hints map[FileID]*hint, idx map[string]Position) {
	for id, seg := range segs {
		a.pendingSegments[id] = seg
	}
	for id, h := range hints {
		a.pendingHints[id] = h
	}
	for k, v := range idx {
		a.pendingIndex[k] = v
	}
}
