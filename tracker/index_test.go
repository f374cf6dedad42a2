package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileIndexBuild(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("test content"), 0o644))

	idx, err := Build([]string{dir})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.FileCount())
	_, ok := idx.Get(filePath)
	assert.True(t, ok)
}

func TestFileIndexSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("test"), 0o644))

	idx, err := Build([]string{dir})
	require.NoError(t, err)

	indexFile := filepath.Join(dir, "index.json")
	require.NoError(t, idx.Save(indexFile))

	loaded, err := Load(indexFile)
	require.NoError(t, err)

	assert.Equal(t, idx.FileCount(), loaded.FileCount())
	assert.Equal(t, idx.TrackedDirs, loaded.TrackedDirs)
}

func TestFileIndexSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	realFile := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(realFile, []byte("data"), 0o644))

	linkPath := filepath.Join(dir, "link.txt")
	if err := os.Symlink(realFile, linkPath); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	idx, err := Build([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.FileCount())
}
