package core

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRebuildFallsBackWhenHintMissing(t *testing.T) {
	store, path := setupTempStore(t, WithMaxSizePerSegment(16))

	require.NoError(t, store.Set([]byte("a"), []byte("1")))
	require.NoError(t, store.Set([]byte("b"), []byte("2")))
	require.NoError(t, store.Set([]byte("c"), []byte("3"))) // forces rotation at least once
	require.NoError(t, store.Close())

	dataIDs, hintIDs, err := scanDataDir(path)
	require.NoError(t, err)
	require.NotEmpty(t, hintIDs)

	// Delete every hint file; rebuild must fall back to a full segment scan
	// and regenerate them.
	for _, id := range hintIDs {
		require.NoError(t, os.Remove(hintPath(path, id)))
	}

	reopened, err := Open(Config{Path: path, MaxSizePerSegment: 16})
	require.NoError(t, err)
	defer reopened.Close()

	for k, want := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		got, err := reopened.Get([]byte(k))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}

	_, regeneratedHintIDs, err := scanDataDir(path)
	require.NoError(t, err)
	regenerated := make(map[FileID]bool, len(regeneratedHintIDs))
	for _, id := range regeneratedHintIDs {
		regenerated[id] = true
	}
	for _, id := range dataIDs {
		require.Truef(t, regenerated[id], "expected a regenerated hint for data file %d", id)
	}
}

func TestRebuildOrphanedHintIsIgnoredAndLogged(t *testing.T) {
	store, path := setupTempStore(t)
	require.NoError(t, store.Set([]byte("a"), []byte("1")))
	require.NoError(t, store.Close())

	// Fabricate an orphan hint with no matching segment.
	orphan, err := newHint(path, 9999)
	require.NoError(t, err)
	require.NoError(t, orphan.close())

	logger := zap.NewNop()
	reopened, err := Open(Config{Path: path}, WithLogger(logger))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1", string(got))
}

func TestScanDataDirSortsAscending(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []FileID{5, 1, 3, 2, 4} {
		seg, err := newSegment(dir, id)
		require.NoError(t, err)
		require.NoError(t, seg.close())
		h, err := newHint(dir, id)
		require.NoError(t, err)
		require.NoError(t, h.close())
	}

	dataIDs, hintIDs, err := scanDataDir(dir)
	require.NoError(t, err)
	require.Equal(t, []FileID{1, 2, 3, 4, 5}, dataIDs)
	require.Equal(t, []FileID{1, 2, 3, 4, 5}, hintIDs)
}
