package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAddedFiles(t *testing.T) {
	dir := t.TempDir()
	oldIndex := New([]string{dir})

	newFile := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(newFile, []byte("new content"), 0o644))

	changes, err := oldIndex.DetectChanges([]string{dir})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Added, changes[0].ChangeType)
	assert.Equal(t, newFile, changes[0].Path)
}

func TestDetectRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("test"), 0o644))

	oldIndex, err := Build([]string{dir})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filePath))

	changes, err := oldIndex.DetectChanges([]string{dir})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Removed, changes[0].ChangeType)
	assert.Equal(t, filePath, changes[0].Path)
}

func TestDetectModifiedFiles(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("original"), 0o644))

	oldIndex, err := Build([]string{dir})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filePath, []byte("modified content that is longer"), 0o644))

	changes, err := oldIndex.DetectChanges([]string{dir})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Contains(t, []ChangeType{Modified, MetadataChanged}, changes[0].ChangeType)
	assert.Equal(t, filePath, changes[0].Path)
}

func TestDetectNoChanges(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("stable"), 0o644))

	idx, err := Build([]string{dir})
	require.NoError(t, err)

	changes, err := idx.DetectChanges([]string{dir})
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestTrackerSaveLoadIndex(t *testing.T) {
	dir := t.TempDir()
	indexDir := filepath.Join(dir, "indexes")
	tr := NewTracker(indexDir)

	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("test"), 0o644))

	idx, err := Build([]string{dir})
	require.NoError(t, err)
	require.NoError(t, tr.SaveIndex("backup1", idx))

	assert.True(t, tr.HasLatestIndex())

	loaded, err := tr.LoadIndex("backup1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.FileCount())
}

func TestTrackerFirstBackupTreatsAllAsAdded(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(filepath.Join(dir, "indexes"))

	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("data"), 0o644))

	changes, err := tr.DetectChangesSinceLastBackup([]string{dir})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Added, changes[0].ChangeType)
}
