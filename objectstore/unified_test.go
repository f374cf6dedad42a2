package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProvider fails its first N calls to any method, then delegates
// to an in-memory provider.
type flakyProvider struct {
	inner     *MemoryProvider
	failTimes int
	calls     int
}

func newFlakyProvider(failTimes int) *flakyProvider {
	return &flakyProvider{inner: NewMemoryProvider(), failTimes: failTimes}
}

var errFlaky = errors.New("flaky: simulated transient failure")

func (f *flakyProvider) maybeFail() error {
	f.calls++
	if f.calls <= f.failTimes {
		return errFlaky
	}
	return nil
}

func (f *flakyProvider) Upload(ctx context.Context, logicalPath string, data []byte, options UploadOptions) (StorageItem, error) {
	if err := f.maybeFail(); err != nil {
		return StorageItem{}, err
	}
	return f.inner.Upload(ctx, logicalPath, data, options)
}

func (f *flakyProvider) Download(ctx context.Context, logicalPath string) ([]byte, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	return f.inner.Download(ctx, logicalPath)
}

func (f *flakyProvider) Delete(ctx context.Context, logicalPath string) error {
	if err := f.maybeFail(); err != nil {
		return err
	}
	return f.inner.Delete(ctx, logicalPath)
}

func (f *flakyProvider) List(ctx context.Context, prefix string, recursive bool) ([]StorageItem, error) {
	if err := f.maybeFail(); err != nil {
		return nil, err
	}
	return f.inner.List(ctx, prefix, recursive)
}

func (f *flakyProvider) Head(ctx context.Context, logicalPath string) (StorageItem, error) {
	if err := f.maybeFail(); err != nil {
		return StorageItem{}, err
	}
	return f.inner.Head(ctx, logicalPath)
}

func (f *flakyProvider) Copy(ctx context.Context, src, dst string) error {
	if err := f.maybeFail(); err != nil {
		return err
	}
	return f.inner.Copy(ctx, src, dst)
}

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestUnifiedProviderRetriesPrimary(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyProvider(2)
	u := NewUnifiedProvider(primary, nil, fastRetryPolicy())

	_, err := u.Upload(ctx, "x", []byte("data"), UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, primary.calls)
}

func TestUnifiedProviderFallsBackAfterExhaustingRetries(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyProvider(100)
	fallback := NewMemoryProvider()
	u := NewUnifiedProvider(primary, []Provider{fallback}, fastRetryPolicy())

	item, err := u.Upload(ctx, "x", []byte("data"), UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "x", item.LogicalPath)
	assert.Equal(t, fastRetryPolicy().MaxAttempts, primary.calls)

	data, err := fallback.Download(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestUnifiedProviderDoesNotRetryNotFound(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryProvider()
	u := NewUnifiedProvider(primary, nil, fastRetryPolicy())

	_, err := u.Download(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnifiedProviderAllProvidersFail(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyProvider(100)
	fallback := newFlakyProvider(100)
	u := NewUnifiedProvider(primary, []Provider{fallback}, fastRetryPolicy())

	_, err := u.Upload(ctx, "x", []byte("data"), UploadOptions{})
	assert.ErrorIs(t, err, errFlaky)
}
