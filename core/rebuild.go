package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

// rebuildResult is everything bootstrap needs to wire up a fresh Store: the
// populated older tier, a writable active segment+hint pair one past the
// highest id found on disk, and the next id to hand out on the following
// rotation.
type rebuildResult struct {
	older      *olderData
	activeSeg  *segment
	activeHint *hint
	nextFileID FileID
}

// scanDataDir lists the file ids present in dir, split by extension. Ids are
// returned sorted ascending: per SPEC_FULL.md §11.2, rebuild walks segments
// in ascending file-id order so that, for any key written in more than one
// segment, the later (higher-id) segment's entry is the one left standing in
// the index — matching "highest file id wins" without needing timestamps.
func scanDataDir(dir string) (dataIDs, hintIDs []FileID, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".data"):
			id, perr := strconv.ParseUint(strings.TrimSuffix(name, ".data"), 10, 64)
			if perr != nil {
				continue
			}
			dataIDs = append(dataIDs, id)
		case strings.HasSuffix(name, ".hint"):
			id, perr := strconv.ParseUint(strings.TrimSuffix(name, ".hint"), 10, 64)
			if perr != nil {
				continue
			}
			hintIDs = append(hintIDs, id)
		}
	}

	sort.Slice(dataIDs, func(i, j int) bool { return dataIDs[i] < dataIDs[j] })
	sort.Slice(hintIDs, func(i, j int) bool { return hintIDs[i] < hintIDs[j] })
	return dataIDs, hintIDs, nil
}

// rebuild scans cfg.Path, reconstructs the older tier, and opens a fresh
// active segment one past the highest file id found. max_file_id's baseline
// is 0 regardless of whether any .data files exist — per spec.md §3's
// three-way id split, 0 is reserved as the one-time bootstrap id that only
// New ever hands out (see bootstrap, below); Open always starts counting
// live ids from 1, even against a directory that turns out to be empty.
func rebuild(cfg Config, log *zap.Logger) (*rebuildResult, error) {
	dataIDs, hintIDs, err := scanDataDir(cfg.Path)
	if err != nil {
		return nil, err
	}

	hintSet := mapset.NewThreadUnsafeSet[FileID](hintIDs...)
	dataSet := mapset.NewThreadUnsafeSet[FileID](dataIDs...)

	for _, id := range hintSet.Difference(dataSet).ToSlice() {
		log.Warn("orphaned hint file found on open, ignoring", zap.Uint64("file_id", id))
	}

	older := newOlderData()
	var maxID FileID

	for _, id := range dataIDs {
		if id > maxID {
			maxID = id
		}

		seg, err := openSegment(cfg.Path, id)
		if err != nil {
			return nil, err
		}

		var h *hint
		index := make(map[string]Position)

		if hintSet.Contains(id) {
			h, index, err = loadHint(cfg.Path, id)
			if err != nil {
				log.Warn("hint file unreadable, rescanning segment",
					zap.Uint64("file_id", id), zap.Error(err))
				h = nil
			}
		}

		if h == nil {
			h, index, err = rescanSegment(seg, log)
			if err != nil {
				_ = seg.close()
				return nil, err
			}
		}

		if err := older.addSegment(seg, h); err != nil {
			return nil, err
		}
		older.extend(nil, nil, index)
	}

	if maxID+1 >= cfg.MaxFileID {
		return nil, ErrFileIDOverflow
	}
	activeID := maxID + 1

	activeSeg, err := newSegment(cfg.Path, activeID)
	if err != nil {
		return nil, err
	}
	activeHint, err := newHint(cfg.Path, activeID)
	if err != nil {
		_ = activeSeg.close()
		return nil, err
	}

	return &rebuildResult{
		older:      older,
		activeSeg:  activeSeg,
		activeHint: activeHint,
		nextFileID: activeID + 1,
	}, nil
}

// bootstrap builds the one true fresh store: active segment id 0,
// next_file_id 1, empty older tier. Only New calls this, and only against a
// directory already confirmed to hold no segment files.
func bootstrap(cfg Config) (*rebuildResult, error) {
	activeSeg, err := newSegment(cfg.Path, 0)
	if err != nil {
		return nil, err
	}
	activeHint, err := newHint(cfg.Path, 0)
	if err != nil {
		_ = activeSeg.close()
		return nil, err
	}

	return &rebuildResult{
		older:      newOlderData(),
		activeSeg:  activeSeg,
		activeHint: activeHint,
		nextFileID: 1,
	}, nil
}

// loadHint replays a segment's paired hint file into an index, the fast
// path: O(n_keys) instead of O(n_bytes).
func loadHint(dir string, id FileID) (*hint, map[string]Position, error) {
	h, err := openHint(dir, id)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[string]Position)
	it := h.iter()
	for {
		entry, ok := it.scan()
		if !ok {
			break
		}
		index[string(entry.Key)] = entry.Position
	}
	if it.Err() != nil {
		_ = h.close()
		return nil, nil, it.Err()
	}

	return h, index, nil
}

// rescanSegment is the fallback path for a missing or corrupt hint: walk the
// segment's records directly, regenerating both the index and a fresh hint
// file so the next open is back on the fast path. A truncated final record
// is not an error — the segment's size counter is pulled back to the last
// good record boundary and the truncated tail is discarded, matching the
// "truncated final record terminates recovery without raising" edge case.
func rescanSegment(seg *segment, log *zap.Logger) (*hint, map[string]Position, error) {
	index := make(map[string]Position)
	lastGood := int64(0)

	it := seg.iter()
	for {
		entry, ok := it.scan()
		if !ok {
			break
		}
		lastGood = int64(entry.Offset)

		// Deleted keys are indexed at their tombstone's own position, just
		// like a live value — get() classifies deletion from the stored
		// bytes, not from a sentinel position, so rescan must never special
		// case it either.
		index[string(entry.Key)] = Position{FileID: seg.id, Offset: entry.Offset}
		lastGood += recordLen(entry)
	}
	if it.Err() != nil {
		return nil, nil, fmt.Errorf("rescan segment %d: %w", seg.id, it.Err())
	}

	if lastGood < seg.size {
		log.Warn("truncated trailing record discarded on rebuild",
			zap.Uint64("file_id", seg.id), zap.Int64("valid_size", lastGood), zap.Int64("on_disk_size", seg.size))
		if err := seg.truncate(lastGood); err != nil {
			return nil, nil, err
		}
	}

	h, err := newHint(seg.dir, seg.id)
	if err != nil {
		return nil, nil, err
	}
	for k, pos := range index {
		if _, err := h.insert([]byte(k), pos); err != nil {
			_ = h.close()
			return nil, nil, err
		}
	}
	if err := h.sync(); err != nil {
		_ = h.close()
		return nil, nil, err
	}

	return h, index, nil
}

// recordLen re-derives a decoded entry's on-disk length so rescanSegment can
// advance lastGood without the iterator re-exposing its internal cursor.
func recordLen(e segmentEntry) int64 {
	cs := checksum32(append(append([]byte{}, e.Key...), e.Value...))
	return int64(uvarintLen(uint64(len(e.Key)))) + int64(len(e.Key)) +
		int64(uvarintLen(uint64(len(e.Value)))) + int64(len(e.Value)) +
		int64(uvarintLen(uint64(cs)))
}
