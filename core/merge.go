package core

import (
	"fmt"
	"os"
	"sort"
)

// mergeResult is the transient output of phase 1: the rewritten index
// fragment, the disjoint output file ids it was written under, and the
// ordered snapshot of input file ids phase 2 will destroy and rename over.
type mergeResult struct {
	mergedIndex     map[string]Position
	newFileIDs      []FileID
	toRemoveFileIDs []FileID
}

// Merge runs the store's foreground compaction, per SPEC_FULL.md §4.6 and
// §10: unlike the teacher's background goroutine+channel merge, this runs
// synchronously on the caller's goroutine, matching the source design's
// "merge is a foreground operation on the caller's thread." since selects
// which older segments are eligible: nil means every older segment, a
// non-nil value restricts to segments with file id >= *since.
func (s *Store) Merge(since *FileID) error {
	if s.closed.Load() {
		return ErrClosed
	}

	result, err := s.mergePhase1(since)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	return s.mergePhase2(result)
}

// mergePhase1 holds only OlderData's read lock, for the duration of reading
// the input segments. No ActiveData lock is taken, so writers proceed
// undisturbed while a merge is reading.
func (s *Store) mergePhase1(since *FileID) (*mergeResult, error) {
	s.olderMu.RLock()
	defer s.olderMu.RUnlock()

	var toRemove []FileID
	for id := range s.older.segments {
		if since == nil || id >= *since {
			toRemove = append(toRemove, id)
		}
	}
	if len(toRemove) == 0 {
		return nil, nil
	}
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] < toRemove[j] })

	// Captured by reference, not copied: phase 1 reads the live index as it
	// stands right now, so any record whose position has since been
	// superseded (by a later merge output it can't see yet, since we hold
	// only the read lock) is correctly treated as already-gone.
	liveIndex := s.older.index

	w := newMergeWriter(s.cfg.Path, s.cfg.MinMergeFileID, s.cfg.MaxSizePerSegment)
	mergedIndex := make(map[string]Position)

	for _, id := range toRemove {
		seg := s.older.segments[id]
		it := seg.iter()
		for {
			entry, ok := it.scan()
			if !ok {
				break
			}

			pos, live := liveIndex[string(entry.Key)]
			if !live || pos.FileID != seg.id || pos.Offset != entry.Offset {
				continue
			}

			newPos, werr := w.write(entry.Key, entry.Value)
			if werr != nil {
				w.abort()
				return nil, werr
			}
			mergedIndex[string(entry.Key)] = newPos
		}
		if it.Err() != nil {
			w.abort()
			return nil, fmt.Errorf("bitkv: merge read segment %d: %w", seg.id, it.Err())
		}
	}

	newFileIDs, err := w.finish()
	if err != nil {
		w.abort()
		return nil, err
	}

	return &mergeResult{
		mergedIndex:     mergedIndex,
		newFileIDs:      newFileIDs,
		toRemoveFileIDs: toRemove,
	}, nil
}

// mergePhase2 holds OlderData's exclusive lock only for the
// rename/destroy/install steps: the fast part.
func (s *Store) mergePhase2(r *mergeResult) error {
	s.olderMu.Lock()
	defer s.olderMu.Unlock()

	if len(r.newFileIDs) > len(r.toRemoveFileIDs) {
		return fmt.Errorf("bitkv: merge invariant violated: %d new output file(s) exceed %d removed",
			len(r.newFileIDs), len(r.toRemoveFileIDs))
	}

	for _, id := range r.toRemoveFileIDs {
		if err := s.older.removeSegment(id); err != nil {
			return err
		}
	}

	idMap := make(map[FileID]FileID, len(r.newFileIDs))
	for i, newID := range r.newFileIDs {
		oldID := r.toRemoveFileIDs[i]
		idMap[newID] = oldID

		if err := os.Rename(segmentPath(s.cfg.Path, newID), segmentPath(s.cfg.Path, oldID)); err != nil {
			return fmt.Errorf("bitkv: merge rename segment %d -> %d: %w", newID, oldID, err)
		}
		if err := os.Rename(hintPath(s.cfg.Path, newID), hintPath(s.cfg.Path, oldID)); err != nil {
			return fmt.Errorf("bitkv: merge rename hint %d -> %d: %w", newID, oldID, err)
		}
	}

	rewritten := make(map[string]Position, len(r.mergedIndex))
	for k, pos := range r.mergedIndex {
		oldID, ok := idMap[pos.FileID]
		if !ok {
			return fmt.Errorf("bitkv: merge: output file id %d not in rename map", pos.FileID)
		}
		rewritten[k] = Position{FileID: oldID, Offset: pos.Offset}
	}

	reopenedSegs := make(map[FileID]*segment, len(idMap))
	reopenedHints := make(map[FileID]*hint, len(idMap))
	for _, oldID := range idMap {
		seg, err := openSegment(s.cfg.Path, oldID)
		if err != nil {
			return fmt.Errorf("bitkv: merge reopen segment %d: %w", oldID, err)
		}
		h, err := openHint(s.cfg.Path, oldID)
		if err != nil {
			return fmt.Errorf("bitkv: merge reopen hint %d: %w", oldID, err)
		}
		reopenedSegs[oldID] = seg
		reopenedHints[oldID] = h
	}

	s.older.extend(reopenedSegs, reopenedHints, rewritten)
	return nil
}

// mergeWriter owns the current output segment+hint pair during phase 1,
// rotating to a fresh output file id whenever the current one crosses
// maxSize, and tracking every file id it has ever opened so a failed merge
// can unwind its work-in-progress output rather than leaving orphan files.
type mergeWriter struct {
	dir     string
	nextID  FileID
	maxSize uint64

	seg *segment
	h   *hint

	allIDs []FileID
}

func newMergeWriter(dir string, startID FileID, maxSize uint64) *mergeWriter {
	return &mergeWriter{dir: dir, nextID: startID, maxSize: maxSize}
}

func (w *mergeWriter) openNext() error {
	seg, err := newSegment(w.dir, w.nextID)
	if err != nil {
		return err
	}
	h, err := newHint(w.dir, w.nextID)
	if err != nil {
		_ = seg.close()
		return err
	}
	w.seg, w.h = seg, h
	w.allIDs = append(w.allIDs, w.nextID)
	w.nextID++
	return nil
}

// write appends one merged record, rotating the output file first if
// needed, and returns the position it landed at.
func (w *mergeWriter) write(key, value []byte) (Position, error) {
	if w.seg == nil {
		if err := w.openNext(); err != nil {
			return Position{}, err
		}
	}

	offset, err := w.seg.insert(key, value)
	if err != nil {
		return Position{}, err
	}
	pos := Position{FileID: w.seg.id, Offset: offset}
	if _, err := w.h.insert(key, pos); err != nil {
		return Position{}, err
	}

	if uint64(w.seg.size) >= w.maxSize {
		if err := w.seal(); err != nil {
			return Position{}, err
		}
	}

	return pos, nil
}

func (w *mergeWriter) seal() error {
	if err := w.seg.sync(); err != nil {
		return err
	}
	if err := w.h.sync(); err != nil {
		return err
	}
	w.seg, w.h = nil, nil
	return nil
}

// finish flushes any still-open output file and returns the ordered list of
// output file ids produced. If every input record turned out to be
// superseded, write was never called, no output file was ever opened, and
// this returns an empty list.
func (w *mergeWriter) finish() ([]FileID, error) {
	if w.seg != nil {
		if err := w.seal(); err != nil {
			return nil, err
		}
	}
	return w.allIDs, nil
}

// abort discards every output file written so far, matching spec.md §7:
// "a failed merge in phase 1 discards the work-in-progress output files."
func (w *mergeWriter) abort() {
	if w.seg != nil {
		_ = w.seg.close()
	}
	if w.h != nil {
		_ = w.h.close()
	}
	for _, id := range w.allIDs {
		_ = os.Remove(segmentPath(w.dir, id))
		_ = os.Remove(hintPath(w.dir, id))
	}
}
