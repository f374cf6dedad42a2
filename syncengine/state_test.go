package syncengine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylock-oss/skylock/config"
)

func TestJSONStoreMarkTransitions(t *testing.T) {
	dir := t.TempDir()
	store, err := openJSONStore(filepath.Join(dir, "state.json"), 256)
	require.NoError(t, err)

	require.NoError(t, store.MarkModified("/a.txt", 2048, time.Now().UTC()))
	state, ok, err := store.Get("/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusNew, state.Status)

	require.NoError(t, store.MarkSyncing("/a.txt"))
	state, _, _ = store.Get("/a.txt")
	assert.Equal(t, StatusSyncing, state.Status)

	require.NoError(t, store.MarkSynced("/a.txt", "abc123"))
	state, _, _ = store.Get("/a.txt")
	assert.Equal(t, StatusSynced, state.Status)
	assert.Equal(t, "abc123", state.ContentHash)

	require.NoError(t, store.MarkModified("/a.txt", 4096, time.Now().UTC()))
	state, _, _ = store.Get("/a.txt")
	assert.Equal(t, StatusModified, state.Status)
}

func TestJSONStorePendingSync(t *testing.T) {
	dir := t.TempDir()
	store, err := openJSONStore(filepath.Join(dir, "state.json"), 256)
	require.NoError(t, err)

	require.NoError(t, store.MarkModified("/new.txt", 100, time.Now().UTC()))
	require.NoError(t, store.MarkModified("/synced.txt", 200, time.Now().UTC()))
	require.NoError(t, store.MarkSyncing("/synced.txt"))
	require.NoError(t, store.MarkSynced("/synced.txt", ""))
	require.NoError(t, store.MarkModified("/synced.txt", 300, time.Now().UTC()))

	pending, err := store.PendingSync()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestJSONStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := openJSONStore(path, 256)
	require.NoError(t, err)
	require.NoError(t, store.MarkModified("/persist.txt", 999, time.Now().UTC()))

	reloaded, err := openJSONStore(path, 256)
	require.NoError(t, err)
	state, ok, err := reloaded.Get("/persist.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(999), state.Size)
}

func TestJSONStoreHistoryAndStats(t *testing.T) {
	dir := t.TempDir()
	store, err := openJSONStore(filepath.Join(dir, "state.json"), 256)
	require.NoError(t, err)

	require.NoError(t, store.RecordHistory(HistoryEntry{Path: "/x.txt", Success: true}))
	require.NoError(t, store.RecordHistory(HistoryEntry{Path: "/x.txt", Success: false}))

	history, err := store.FileHistory("/x.txt")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	recent, err := store.RecentHistory(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestJSONStoreRetryable(t *testing.T) {
	dir := t.TempDir()
	store, err := openJSONStore(filepath.Join(dir, "state.json"), 256)
	require.NoError(t, err)

	require.NoError(t, store.MarkModified("/a.txt", 1, time.Now().UTC()))
	require.NoError(t, store.MarkSyncing("/a.txt"))
	require.NoError(t, store.MarkFailed("/a.txt", "boom"))

	retryable, err := store.Retryable(5)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, "boom", retryable[0].LastError)
}

func TestPebbleStoreMarkTransitionsMatchJSONStore(t *testing.T) {
	dir := t.TempDir()
	store, err := openPebbleStore(dir, 256)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.MarkModified("/a.txt", 2048, time.Now().UTC()))
	state, ok, err := store.Get("/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusNew, state.Status)

	require.NoError(t, store.MarkSyncing("/a.txt"))
	require.NoError(t, store.MarkSynced("/a.txt", "abc123"))
	state, _, _ = store.Get("/a.txt")
	assert.Equal(t, StatusSynced, state.Status)
	assert.Equal(t, "abc123", state.ContentHash)
}

func TestPebbleStoreHistoryPruning(t *testing.T) {
	dir := t.TempDir()
	store, err := openPebbleStore(dir, 2)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordHistory(HistoryEntry{Path: "/x.txt"}))
	}

	recent, err := store.RecentHistory(0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestOpenStoreSelectsBackendFromConfig(t *testing.T) {
	dir := t.TempDir()

	jsonStoreHandle, err := OpenStore(config.SyncStateConfig{HistorySize: 10, UsePebble: false}, filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	defer jsonStoreHandle.Close()
	_, isJSON := jsonStoreHandle.(*jsonStore)
	assert.True(t, isJSON)

	pebbleHandle, err := OpenStore(config.SyncStateConfig{HistorySize: 10, UsePebble: true}, filepath.Join(dir, "pebble"))
	require.NoError(t, err)
	defer pebbleHandle.Close()
	_, isPebble := pebbleHandle.(*pebbleStore)
	assert.True(t, isPebble)
}
