package core

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store is the façade described in SPEC_FULL.md §4.6: it routes reads
// through Active→Older, serializes writes against ActiveData, rotates
// segments, drains pending cohorts into OlderData opportunistically, and
// runs merges. A *Store is safe for concurrent use by many goroutines; it is
// meant to be shared by reference, not copied.
type Store struct {
	cfg Config
	log *zap.Logger

	activeMu sync.RWMutex
	active   *activeData

	olderMu sync.RWMutex
	older   *olderData

	idMu       sync.Mutex
	nextFileID FileID

	closed atomic.Bool
}

// New creates a fresh Store, assuming cfg.Path is empty (or does not yet
// exist). Its active segment is always bootstrapped at file id 0 — the
// reserved bootstrap id from spec.md §3 — distinct from Open, whose active
// segment starts from the live-allocation range at id 1 regardless of
// whether the directory it's given turns out to be empty. It is an error to
// call New against a directory that already holds segment files — use Open
// to rebuild from an existing one.
func New(cfg Config, opts ...Option) (*Store, error) {
	cfg, s, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}

	dataIDs, _, err := scanDataDir(cfg.Path)
	if err != nil {
		return nil, err
	}
	if len(dataIDs) > 0 {
		return nil, fmt.Errorf("bitkv: New requires an empty directory, found %d existing segment(s) under %q", len(dataIDs), cfg.Path)
	}

	rr, err := bootstrap(cfg)
	if err != nil {
		return nil, err
	}
	s.install(rr)
	return s, nil
}

// Open rebuilds a Store from an existing directory, or bootstraps a new one
// at file id 1 if the directory is empty or doesn't exist yet.
func Open(cfg Config, opts ...Option) (*Store, error) {
	cfg, s, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}

	rr, err := rebuild(cfg, s.log)
	if err != nil {
		return nil, err
	}
	s.install(rr)
	return s, nil
}

// prepare resolves defaults, applies options, and ensures the base directory
// exists — the part of construction shared by New and Open.
func prepare(cfg Config, opts []Option) (Config, *Store, error) {
	cfg = cfg.withDefaults()
	if cfg.Path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, nil, fmt.Errorf("bitkv: resolve default path: %w", err)
		}
		cfg.Path = wd
	}

	s := &Store{cfg: cfg, log: defaultLogger()}
	for _, opt := range opts {
		opt(s)
	}
	cfg = s.cfg

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return cfg, nil, fmt.Errorf("bitkv: create %q: %w", cfg.Path, err)
	}

	return cfg, s, nil
}

func (s *Store) install(rr *rebuildResult) {
	s.active = newActiveData(rr.activeSeg, rr.activeHint)
	s.older = rr.older
	s.nextFileID = rr.nextFileID
}

// Get returns the current value for key, or ErrKeyNotFound if it has never
// been set or was deleted. Per SPEC_FULL.md §4.6, the read path acquires
// ActiveData's read lock, releases it, then (only if necessary) acquires
// OlderData's — the two locks are never held together on this path, so a
// merge's phase-2 writer waits at most for the OlderData half of a Get.
func (s *Store) Get(key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.activeMu.RLock()
	raw, found, err := s.active.get(key)
	s.activeMu.RUnlock()
	if err != nil {
		return nil, err
	}

	if !found {
		s.olderMu.RLock()
		raw, found, err = s.older.get(key)
		s.olderMu.RUnlock()
		if err != nil {
			return nil, err
		}
	}

	// raw == nil here only if an index slot pointed at a pending or older
	// segment id that's no longer resident (the defensive fallback in
	// activeData.get and olderData.get) — not a path any normal write reaches.
	if !found || raw == nil {
		return nil, ErrKeyNotFound
	}

	// A deleted key's index slot points at its own tombstone record — see
	// activeData.delete — so this is where deletion is actually recognized:
	// from the stored bytes, not from a sentinel position.
	if isTombstone(raw) {
		return nil, ErrKeyNotFound
	}

	return unescapeTombstone(raw), nil
}

// Exists reports whether key currently has a live value. It goes through
// Get rather than consulting the indices directly: a deleted key's index
// slot points at its tombstone record just like a live key's points at its
// value, so only a full lookup that reads the stored bytes gives the right
// answer.
func (s *Store) Exists(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value for key, escaping any accidental collision with the
// tombstone sentinel before append.
func (s *Store) Set(key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.write(key, escapeTombstone(value), false)
}

// Delete marks key as removed. Equivalent to Set(key, tombstone) except the
// raw sentinel is written unescaped — it IS the deletion marker, not a user
// value that happens to collide with one.
func (s *Store) Delete(key []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.write(key, tombstone, true)
}

// write implements the common body of Set and Delete: append under
// ActiveData's exclusive lock, rotate if the segment has crossed threshold,
// then make one non-blocking attempt to drain any pending cohort into
// OlderData.
func (s *Store) write(key, storedValue []byte, isDelete bool) error {
	s.activeMu.Lock()
	var toRotate bool
	var err error
	if isDelete {
		toRotate, err = s.active.delete(key, storedValue, s.cfg.MaxSizePerSegment)
	} else {
		toRotate, err = s.active.insert(key, storedValue, s.cfg.MaxSizePerSegment)
	}
	if err != nil {
		s.activeMu.Unlock()
		return err
	}

	if s.cfg.Fsync {
		if serr := s.active.segment.sync(); serr != nil {
			s.activeMu.Unlock()
			return serr
		}
		if herr := s.active.hint.sync(); herr != nil {
			s.activeMu.Unlock()
			return herr
		}
	}

	if toRotate {
		if rerr := s.rotateLocked(); rerr != nil {
			s.activeMu.Unlock()
			return rerr
		}
	}

	// Non-blocking: if OlderData is busy (a merge is mid-flight, or a reader
	// holds it), the cohort simply stays pending. To keep the pop safe
	// without a blocking Older acquisition, we only pop once the TryLock
	// succeeds, still under ActiveData's write lock; see drainLocked below.
	s.drainLocked()
	s.activeMu.Unlock()

	return nil
}

// drainLocked makes one non-blocking attempt to fold Active's pending cohort
// into OlderData, using sync.RWMutex.TryLock. Caller must hold activeMu for
// writing. The cohort leaves the pending maps only after the TryLock has
// succeeded, so a key is never missing from both tiers at once; on failure
// it stays pending for a later writer's own drain attempt, which keeps the
// calling writer lock-free with respect to OlderData.
func (s *Store) drainLocked() {
	if len(s.active.pendingSegments) == 0 || !s.olderMu.TryLock() {
		return
	}
	segs, hints, idx := s.active.drainPending()
	s.older.extend(segs, hints, idx)
	s.olderMu.Unlock()
}

// rotateLocked allocates a fresh file id and installs a new writable
// segment+hint pair. Caller must hold activeMu for writing.
func (s *Store) rotateLocked() error {
	id, err := s.nextID()
	if err != nil {
		return err
	}

	seg, err := newSegment(s.cfg.Path, id)
	if err != nil {
		return err
	}
	h, err := newHint(s.cfg.Path, id)
	if err != nil {
		_ = seg.close()
		return err
	}

	s.active.rotate(seg, h)
	return nil
}

// nextID allocates the next live file id under its own leaf lock, asserting
// it stays below MaxFileID.
func (s *Store) nextID() (FileID, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if s.nextFileID >= s.cfg.MaxFileID {
		return 0, ErrFileIDOverflow
	}
	id := s.nextFileID
	s.nextFileID++
	return id, nil
}

// DiskSize returns the total bytes currently occupied by segment and hint
// files under the store's directory, summing the active, pending, and older
// tiers. Not part of the original Rust store's public surface, but a
// natural operational read: every byte counted here is already tracked by
// an in-memory size field, so this never touches the filesystem.
func (s *Store) DiskSize() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	var total int64

	s.activeMu.RLock()
	total += s.active.segment.size + s.active.hint.size
	for _, seg := range s.active.pendingSegments {
		total += seg.size
	}
	for _, h := range s.active.pendingHints {
		total += h.size
	}
	s.activeMu.RUnlock()

	s.olderMu.RLock()
	for _, seg := range s.older.segments {
		total += seg.size
	}
	for _, h := range s.older.hints {
		total += h.size
	}
	s.olderMu.RUnlock()

	return uint64(total), nil
}

// Close releases the store's open file handles. Any call to Get, Set,
// Delete, Exists, Merge, or Keys after Close returns ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.olderMu.Lock()
	defer s.olderMu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(s.active.segment.close())
	record(s.active.hint.close())
	for _, seg := range s.active.pendingSegments {
		record(seg.close())
	}
	for _, h := range s.active.pendingHints {
		record(h.close())
	}
	for _, seg := range s.older.segments {
		record(seg.close())
	}
	for _, h := range s.older.hints {
		record(h.close())
	}

	return firstErr
}
