package core

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// KeysView is a read-consistent, de-duplicated snapshot of every live key
// across the active, pending, and older tiers. Building the snapshot
// acquires a shared lock on ActiveData and a shared lock on OlderData,
// fixed-order Active-then-Older to avoid deadlocking against Set's
// drain attempt (which locks Active first, then only *tries* Older).
//
// Both locks are held for the KeysView's lifetime, not just while the
// snapshot is built: per spec.md §4.7 this is a deliberate design choice so
// no rotation, merge, or set/delete can be observed to promote or destroy
// state the view has already reported. This is a real latency source for
// concurrent writers — a long-lived KeysView delays any writer's
// opportunistic pending-drain and any merge's phase-2 handover — so callers
// should iterate promptly and Close the view. KeysSnapshot, below, offers a
// copy-and-release alternative for callers that don't need that guarantee.
type KeysView struct {
	keys []string

	releaseOnce sync.Once
	release     func()
}

// Close releases the locks held by the view. Safe to call more than once.
func (v *KeysView) Close() error {
	v.releaseOnce.Do(v.release)
	return nil
}

// All returns every key in the snapshot. The returned slice is owned by the
// caller and safe to use after Close.
func (v *KeysView) All() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Keys opens a read-consistent snapshot view over the store. Callers must
// Close the returned view once done iterating it.
func (s *Store) Keys() (*KeysView, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.activeMu.RLock()
	s.olderMu.RLock()

	// A key's index slot no longer says anything about liveness on its own
	// (see Open Question decision #6 in DESIGN.md) — a deleted key's slot
	// points at its tombstone record just like a live key's points at its
	// value, so telling them apart means resolving through the owning
	// tier's own get, the same way Store.Get does.
	seen := mapset.NewThreadUnsafeSet[string]()
	var keys []string
	var resolveErr error
	resolve := func(k string, get func([]byte) ([]byte, bool, error)) {
		if resolveErr != nil || !seen.Add(k) {
			return
		}
		raw, found, err := get([]byte(k))
		if err != nil {
			resolveErr = err
			return
		}
		if found && raw != nil && !isTombstone(raw) {
			keys = append(keys, k)
		}
	}
	s.active.keys(func(k string) { resolve(k, s.active.get) })
	s.older.keys(func(k string) { resolve(k, s.older.get) })

	if resolveErr != nil {
		s.olderMu.RUnlock()
		s.activeMu.RUnlock()
		return nil, resolveErr
	}

	return &KeysView{
		keys: keys,
		release: func() {
			s.olderMu.RUnlock()
			s.activeMu.RUnlock()
		},
	}, nil
}

// KeysSnapshot is the copy-and-release variant described above: it takes
// the same two locks to build a consistent snapshot, but releases them
// immediately rather than holding them for the caller's iteration.
func (s *Store) KeysSnapshot() ([]string, error) {
	v, err := s.Keys()
	if err != nil {
		return nil, err
	}
	defer v.Close()
	return v.All(), nil
}
