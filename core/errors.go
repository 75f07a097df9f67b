// Package core provides the bitkv storage engine: an append-only,
// segment-based key-value store in the Bitcask tradition.
package core

import "errors"

// ErrKeyNotFound is returned by Get when a key has never been set or was
// deleted. Exists is built on top of Get and translates this into (false,
// nil) rather than propagating it.
var ErrKeyNotFound = errors.New("bitkv: key not found")

// ErrChecksumMismatch means a record's stored checksum does not match the
// bytes read back. It is a hard error: readers must never return a value
// whose checksum fails.
var ErrChecksumMismatch = errors.New("bitkv: checksum mismatch")

// ErrFileIDOverflow means a freshly allocated live file id would reach or
// exceed Config.MaxFileID. Bootstrap-time overflow is fatal: the store is
// unusable once the live file id space is exhausted.
var ErrFileIDOverflow = errors.New("bitkv: file id overflow")

// ErrClosed is returned by operations attempted on a Store after Close.
var ErrClosed = errors.New("bitkv: store is closed")
