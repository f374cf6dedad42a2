// Package objectstore defines the narrow capability interface the
// rest of the engine consumes for durable blob storage (spec §6), plus
// an in-memory implementation, a local-filesystem implementation, and
// a decorator that layers retry and fallback over a primary provider.
//
// Bodies are always opaque, fully-buffered byte slices: no streaming
// guarantee is offered beyond "delivered in full or delete and retry".
package objectstore

import (
	"context"
	"errors"
	"time"
)

// StorageItem describes one object as the store reports it back,
// independent of which Provider produced it.
type StorageItem struct {
	LogicalPath string
	Size        int64
	ContentHash string
	ModTime     time.Time
	Metadata    map[string]string
}

// UploadOptions carries optional per-object hints a Provider may use.
type UploadOptions struct {
	// ContentHash is the caller-computed hash of bytes, recorded for
	// later integrity checks. Optional.
	ContentHash string
	// Metadata is opaque key/value data stored alongside the object.
	Metadata map[string]string
	// FailIfExists rejects the upload if LogicalPath is already
	// present, instead of overwriting it.
	FailIfExists bool
}

// Sentinel errors a Provider returns for conditions every
// implementation must be able to report uniformly.
var (
	// ErrNotFound is returned by Download, Head, and Copy when the
	// logical path does not exist.
	ErrNotFound = errors.New("objectstore: object not found")
	// ErrAlreadyExists is returned by Upload when FailIfExists is set
	// and an object already occupies the logical path.
	ErrAlreadyExists = errors.New("objectstore: object already exists")
)

// Provider is the single capability interface every storage backend
// implements. Every blocking call takes a context so callers can
// bound retries and cancellation.
type Provider interface {
	// Upload writes bytes to logicalPath and returns the resulting
	// StorageItem.
	Upload(ctx context.Context, logicalPath string, bytes []byte, options UploadOptions) (StorageItem, error)
	// Download reads the full contents of logicalPath.
	Download(ctx context.Context, logicalPath string) ([]byte, error)
	// Delete removes logicalPath. Deleting a missing path is not an
	// error.
	Delete(ctx context.Context, logicalPath string) error
	// List returns every object whose logical path starts with
	// prefix. When recursive is false, only the immediate child level
	// under prefix is returned.
	List(ctx context.Context, prefix string, recursive bool) ([]StorageItem, error)
	// Head returns metadata for logicalPath without its body, or
	// ErrNotFound if absent.
	Head(ctx context.Context, logicalPath string) (StorageItem, error)
	// Copy duplicates the object at src to dst.
	Copy(ctx context.Context, src, dst string) error
}
