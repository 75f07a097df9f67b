package core

import "go.uber.org/zap"

// Default tuning values, chosen to match spec.md §6.
const (
	DefaultMaxSizePerSegment = 100_000_000
	DefaultMaxFileID         = 1_000_000_000
	DefaultMinMergeFileID    = 100_000_000_000
)

// Config holds the tunables a Store is opened with. Loading these values
// from a config file is an external-collaborator concern (spec.md §1) —
// callers build a Config in code; this package never reads a config file
// itself.
type Config struct {
	// Path is the directory segment and hint files live under.
	Path string

	// MaxSizePerSegment is the rollover threshold: once the active
	// segment's size reaches this many bytes, it is sealed and a new one
	// is opened.
	MaxSizePerSegment uint64

	// MaxFileID is the hard ceiling for live-allocation file ids.
	// Crossing it on rotation is a fatal bootstrap error.
	MaxFileID uint64

	// MinMergeFileID is the base of the merge-output id range, which must
	// exceed MaxFileID so merge output can never collide with a live id.
	MinMergeFileID uint64

	// Fsync, when true, syncs the active segment and hint to stable storage
	// after every Set/Delete. Off by default, trading durability-on-crash
	// for throughput — the same tradeoff the teacher's WithFsync option
	// exposes. It lives on Config so it round-trips through Open the same
	// way the other tunables do, and can also be set with WithFsync.
	Fsync bool
}

// withDefaults fills in zero-valued fields with spec.md §6's defaults.
func (c Config) withDefaults() Config {
	if c.MaxSizePerSegment == 0 {
		c.MaxSizePerSegment = DefaultMaxSizePerSegment
	}
	if c.MaxFileID == 0 {
		c.MaxFileID = DefaultMaxFileID
	}
	if c.MinMergeFileID == 0 {
		c.MinMergeFileID = DefaultMinMergeFileID
	}
	return c
}

// Option configures a Store at construction time, following the same
// functional-options shape the teacher uses for its own DB type.
type Option func(*Store)

// WithLogger injects a structured logger for diagnostics raised while
// rebuilding on open (orphaned hint files, an unreadable hint that forces a
// segment rescan, a truncated trailing record discarded). A missing hint and
// an aborted merge are not logged. The default is a no-op logger, so a Store
// stays silent unless a caller opts in.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithFsync turns on a sync to stable storage after every Set/Delete,
// mirroring the teacher's WithFsync option.
func WithFsync(enabled bool) Option {
	return func(s *Store) {
		s.cfg.Fsync = enabled
	}
}

// WithMaxSizePerSegment overrides the rotation threshold.
func WithMaxSizePerSegment(n uint64) Option {
	return func(s *Store) {
		s.cfg.MaxSizePerSegment = n
	}
}

// WithMaxFileID overrides the hard ceiling for live-allocation file ids.
func WithMaxFileID(n uint64) Option {
	return func(s *Store) {
		s.cfg.MaxFileID = n
	}
}

// WithMinMergeFileID overrides the base of the merge-output id range.
func WithMinMergeFileID(n uint64) Option {
	return func(s *Store) {
		s.cfg.MinMergeFileID = n
	}
}
