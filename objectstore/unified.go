package objectstore

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy tunes how UnifiedProvider retries a failing primary
// before giving up or falling back.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy makes up to three attempts per provider, with
// doubling backoff from 100ms, capped at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// UnifiedProvider owns one primary Provider and an ordered list of
// fallbacks. Operations retry against the primary per RetryPolicy
// before moving to the next fallback in order; the first provider
// that succeeds wins.
type UnifiedProvider struct {
	primary   Provider
	fallbacks []Provider
	policy    RetryPolicy
}

// NewUnifiedProvider builds a UnifiedProvider over primary with the
// given ordered fallbacks and retry policy.
func NewUnifiedProvider(primary Provider, fallbacks []Provider, policy RetryPolicy) *UnifiedProvider {
	return &UnifiedProvider{primary: primary, fallbacks: fallbacks, policy: policy}
}

func (u *UnifiedProvider) chain() []Provider {
	chain := make([]Provider, 0, len(u.fallbacks)+1)
	chain = append(chain, u.primary)
	return append(chain, u.fallbacks...)
}

// withRetry runs op against each provider in the chain in order,
// retrying each one up to MaxAttempts times before moving to the
// next. It returns the first success, or the last error seen.
func withRetry[T any](ctx context.Context, u *UnifiedProvider, op func(Provider) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for _, provider := range u.chain() {
		for attempt := 0; attempt < u.policy.MaxAttempts; attempt++ {
			result, err := op(provider)
			if err == nil {
				return result, nil
			}
			lastErr = err
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
				// Not a transient condition; no point retrying or
				// falling back.
				return zero, err
			}
			if attempt < u.policy.MaxAttempts-1 {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(u.policy.delay(attempt)):
				}
			}
		}
	}
	return zero, lastErr
}

func (u *UnifiedProvider) Upload(ctx context.Context, logicalPath string, data []byte, options UploadOptions) (StorageItem, error) {
	return withRetry(ctx, u, func(p Provider) (StorageItem, error) {
		return p.Upload(ctx, logicalPath, data, options)
	})
}

func (u *UnifiedProvider) Download(ctx context.Context, logicalPath string) ([]byte, error) {
	return withRetry(ctx, u, func(p Provider) ([]byte, error) {
		return p.Download(ctx, logicalPath)
	})
}

func (u *UnifiedProvider) Delete(ctx context.Context, logicalPath string) error {
	_, err := withRetry(ctx, u, func(p Provider) (struct{}, error) {
		return struct{}{}, p.Delete(ctx, logicalPath)
	})
	return err
}

func (u *UnifiedProvider) List(ctx context.Context, prefix string, recursive bool) ([]StorageItem, error) {
	return withRetry(ctx, u, func(p Provider) ([]StorageItem, error) {
		return p.List(ctx, prefix, recursive)
	})
}

func (u *UnifiedProvider) Head(ctx context.Context, logicalPath string) (StorageItem, error) {
	return withRetry(ctx, u, func(p Provider) (StorageItem, error) {
		return p.Head(ctx, logicalPath)
	})
}

func (u *UnifiedProvider) Copy(ctx context.Context, src, dst string) error {
	_, err := withRetry(ctx, u, func(p Provider) (struct{}, error) {
		return struct{}{}, p.Copy(ctx, src, dst)
	})
	return err
}
