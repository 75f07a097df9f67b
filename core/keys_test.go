package core

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeysDedupesAcrossTiers(t *testing.T) {
	store, _ := setupTempStore(t, WithMaxSizePerSegment(16))

	want := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("key%02d", i)
		require.NoError(t, store.Set([]byte(k), []byte("v")))
		want = append(want, k)
	}
	// Overwrite half of them again, forcing more rotation without changing
	// the live key set.
	for i := 0; i < 25; i++ {
		k := fmt.Sprintf("key%02d", i)
		require.NoError(t, store.Set([]byte(k), []byte("v2")))
	}

	got, err := store.KeysSnapshot()
	require.NoError(t, err)

	sort.Strings(got)
	sort.Strings(want)
	require.Equal(t, want, got)
}

func TestKeysExcludesDeleted(t *testing.T) {
	store, _ := setupTempStore(t)

	require.NoError(t, store.Set([]byte("a"), []byte("1")))
	require.NoError(t, store.Set([]byte("b"), []byte("2")))
	require.NoError(t, store.Delete([]byte("a")))

	got, err := store.KeysSnapshot()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"b"}, got)
}

func TestKeysViewCloseIsIdempotent(t *testing.T) {
	store, _ := setupTempStore(t)
	require.NoError(t, store.Set([]byte("a"), []byte("1")))

	view, err := store.Keys()
	require.NoError(t, err)
	require.NoError(t, view.Close())
	require.NoError(t, view.Close())
}
