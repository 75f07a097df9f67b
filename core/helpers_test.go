package core

import (
	"os"
	"testing"
)

// setupTempStore opens a fresh Store under a new temp directory and
// registers cleanup, mirroring the teacher's SetupTempDB helper.
func setupTempStore(tb testing.TB, opts ...Option) (store *Store, path string) {
	tb.Helper()

	path, err := os.MkdirTemp("", "bitkv_test_*")
	if err != nil {
		tb.Fatalf("MkdirTemp: %v", err)
	}

	store, err = New(Config{Path: path}, opts...)
	if err != nil {
		_ = os.RemoveAll(path)
		tb.Fatalf("New(%q): %v", path, err)
	}

	tb.Cleanup(func() {
		_ = store.Close()
		_ = os.RemoveAll(path)
	})

	return store, path
}
