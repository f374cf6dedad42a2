package upload

import (
	"context"
	"errors"
	"time"

	"github.com/skylock-oss/skylock/internal/errs"
	"github.com/skylock-oss/skylock/objectstore"
)

// Classify maps an object store error onto the transient/permanent
// taxonomy (spec §7): ErrNotFound and ErrAlreadyExists are structural
// and never retried; everything else from a Provider is treated as
// transient (timeout, 5xx, network reset) until MaxRetries is
// exhausted, at which point it becomes permanent.
func Classify(err error) errs.Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, objectstore.ErrNotFound) || errors.Is(err, objectstore.ErrAlreadyExists) {
		return errs.StoragePermanent
	}
	return errs.StorageTransient
}

// backoffDelay mirrors the sync queue's retry schedule: base delay
// doubles with each attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// retryBaseDelay is RetryUpload's first backoff interval.
var retryBaseDelay = time.Second

// UploadFunc performs a single upload attempt.
type UploadFunc func(ctx context.Context) (objectstore.StorageItem, error)

// RetryUpload calls attempt up to maxRetries+1 times, backing off
// exponentially from a 1-second base between transient failures. A
// permanent (structural) failure returns immediately without
// retrying.
func RetryUpload(ctx context.Context, maxRetries int, attempt UploadFunc) (objectstore.StorageItem, error) {
	var lastErr error

	for try := 0; try <= maxRetries; try++ {
		item, err := attempt(ctx)
		if err == nil {
			return item, nil
		}
		lastErr = err

		if Classify(err) != errs.StorageTransient {
			return objectstore.StorageItem{}, errs.Wrap(errs.StoragePermanent, "upload failed permanently", err)
		}

		if try == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return objectstore.StorageItem{}, ctx.Err()
		case <-time.After(backoffDelay(retryBaseDelay, try+1)):
		}
	}

	return objectstore.StorageItem{}, errs.Wrap(errs.StoragePermanent, "upload exhausted retries", lastErr)
}
