package upload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/objectstore"
)

func newTestPipeline(t *testing.T, store objectstore.Provider) (*Pipeline, *SessionKeyRing) {
	t.Helper()
	longTermKey := bytes.Repeat([]byte{0x12}, 32)
	ring, err := NewSessionKeyRing("backup-test", longTermKey)
	require.NoError(t, err)

	p := New(
		"backup-test",
		config.DefaultUploadPipelineConfig(),
		config.DefaultParallelHashConfig(),
		config.DefaultCompressionConfig(),
		ring,
		store,
		NewDedupFilter(100, 0.01),
	)
	return p, ring
}

func TestPipelineUploadsFileAndRecordsEntry(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("hello world"), 0o644))

	store := objectstore.NewMemoryProvider()
	p, _ := newTestPipeline(t, store)

	result, err := p.Run(context.Background(), []Task{
		{LocalPath: localPath, RemotePath: "backups/backup-test/a.txt.enc"},
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Empty(t, result.Failures)
	assert.True(t, result.Entries[0].Encrypted)

	stored, err := store.Download(context.Background(), "backups/backup-test/a.txt.enc")
	require.NoError(t, err)
	assert.NotEqual(t, "hello world", string(stored))
}

func TestPipelineRecordsFailureForMissingFile(t *testing.T) {
	store := objectstore.NewMemoryProvider()
	p, _ := newTestPipeline(t, store)

	result, err := p.Run(context.Background(), []Task{
		{LocalPath: "/nonexistent/path", RemotePath: "backups/x"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	require.Len(t, result.Failures, 1)
}

func TestPipelineRunsConcurrentlyWithinBound(t *testing.T) {
	dir := t.TempDir()
	store := objectstore.NewMemoryProvider()
	p, _ := newTestPipeline(t, store)
	p.cfg.MaxConcurrentUploads = 2

	var tasks []Task
	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
		tasks = append(tasks, Task{LocalPath: path, RemotePath: "backups/" + string(rune('a'+i))})
	}

	result, err := p.Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 10)
}

func TestPipelineDedupSkipsReencryptionWhenObjectExists(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "dup.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("duplicate content"), 0o644))

	store := objectstore.NewMemoryProvider()
	p, _ := newTestPipeline(t, store)

	task := Task{LocalPath: localPath, RemotePath: "backups/dup.txt.enc"}

	first, err := p.Run(context.Background(), []Task{task})
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	second, err := p.Run(context.Background(), []Task{task})
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, first.Entries[0].ContentHash, second.Entries[0].ContentHash)
}
