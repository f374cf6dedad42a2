package objectstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFSProviderUploadDownload(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalFSProvider(t.TempDir())
	require.NoError(t, err)

	_, err = p.Upload(ctx, "a/b/file.enc", []byte("ciphertext"), UploadOptions{})
	require.NoError(t, err)

	data, err := p.Download(ctx, "a/b/file.enc")
	require.NoError(t, err)
	assert.Equal(t, "ciphertext", string(data))
}

func TestLocalFSProviderDownloadMissing(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalFSProvider(t.TempDir())
	require.NoError(t, err)

	_, err = p.Download(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalFSProviderFailIfExists(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalFSProvider(t.TempDir())
	require.NoError(t, err)

	_, err = p.Upload(ctx, "x", []byte("1"), UploadOptions{})
	require.NoError(t, err)

	_, err = p.Upload(ctx, "x", []byte("2"), UploadOptions{FailIfExists: true})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestLocalFSProviderListRecursive(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p, err := NewLocalFSProvider(root)
	require.NoError(t, err)

	_, _ = p.Upload(ctx, "backups/a/1.enc", []byte("x"), UploadOptions{})
	_, _ = p.Upload(ctx, "backups/a/2.enc", []byte("y"), UploadOptions{})
	_, _ = p.Upload(ctx, "backups/b/1.enc", []byte("z"), UploadOptions{})

	items, err := p.List(ctx, "backups/a", true)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestLocalFSProviderCopy(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalFSProvider(t.TempDir())
	require.NoError(t, err)

	_, err = p.Upload(ctx, "src", []byte("data"), UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, p.Copy(ctx, "src", "dst"))

	data, err := p.Download(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestLocalFSProviderRootCreated(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested", "store")

	_, err := NewLocalFSProvider(nested)
	require.NoError(t, err)

	_, err = NewLocalFSProvider(nested)
	require.NoError(t, err)
}
