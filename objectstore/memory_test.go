package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderUploadDownload(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	item, err := p.Upload(ctx, "backups/a/manifest.json.enc", []byte("ciphertext"), UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len("ciphertext")), item.Size)

	data, err := p.Download(ctx, "backups/a/manifest.json.enc")
	require.NoError(t, err)
	assert.Equal(t, "ciphertext", string(data))
}

func TestMemoryProviderDownloadMissing(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, err := p.Download(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProviderFailIfExists(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, err := p.Upload(ctx, "x", []byte("1"), UploadOptions{})
	require.NoError(t, err)

	_, err = p.Upload(ctx, "x", []byte("2"), UploadOptions{FailIfExists: true})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryProviderDelete(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, err := p.Upload(ctx, "x", []byte("1"), UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, "x"))
	_, err = p.Download(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, p.Delete(ctx, "x"))
}

func TestMemoryProviderListRecursive(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, _ = p.Upload(ctx, "backups/a/1.enc", []byte("x"), UploadOptions{})
	_, _ = p.Upload(ctx, "backups/a/2.enc", []byte("y"), UploadOptions{})
	_, _ = p.Upload(ctx, "backups/b/1.enc", []byte("z"), UploadOptions{})

	items, err := p.List(ctx, "backups/a/", true)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMemoryProviderListNonRecursive(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, _ = p.Upload(ctx, "backups/a/1.enc", []byte("x"), UploadOptions{})
	_, _ = p.Upload(ctx, "backups/b/1.enc", []byte("y"), UploadOptions{})

	items, err := p.List(ctx, "backups/", false)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMemoryProviderHead(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, err := p.Upload(ctx, "x", []byte("data"), UploadOptions{})
	require.NoError(t, err)

	item, err := p.Head(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, int64(4), item.Size)

	_, err = p.Head(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProviderCopy(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	_, err := p.Upload(ctx, "src", []byte("data"), UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, p.Copy(ctx, "src", "dst"))

	data, err := p.Download(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
