// Package upload implements the per-file upload pipeline (spec
// §4.G): bounded-concurrency compress, session-key encrypt, and
// object-store write, with retry-on-transient and skip-on-permanent
// failure handling.
package upload

import (
	"context"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/skylock-oss/skylock/compression"
	"github.com/skylock-oss/skylock/config"
	skycrypto "github.com/skylock-oss/skylock/crypto"
	"github.com/skylock-oss/skylock/manifest"
	"github.com/skylock-oss/skylock/objectstore"
)

// Task is one file selected for upload.
type Task struct {
	LocalPath  string
	RemotePath string
}

// FileFailure records a permanently failed upload; the manifest
// omits the corresponding entry and the run is reported as partial
// success.
type FileFailure struct {
	LocalPath  string
	RemotePath string
	Reason     string
}

// Result is the outcome of running a batch of Tasks through the
// pipeline. Entries may complete in any order; Result is only
// assembled after every task has terminated.
type Result struct {
	Entries  []manifest.FileEntry
	Failures []FileFailure
}

// Pipeline drives compression, session-key encryption, and upload for
// a batch of Tasks, bounded by config.UploadPipelineConfig's
// concurrency limit.
type Pipeline struct {
	cfg      config.UploadPipelineConfig
	hashCfg  config.ParallelHashConfig
	verifier *compression.Verifier
	ring     *SessionKeyRing
	store    objectstore.Provider
	backupID string
	dedup    *DedupFilter
}

// New builds a Pipeline for one backup run.
func New(
	backupID string,
	cfg config.UploadPipelineConfig,
	hashCfg config.ParallelHashConfig,
	compressionCfg config.CompressionConfig,
	ring *SessionKeyRing,
	store objectstore.Provider,
	dedup *DedupFilter,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		hashCfg:  hashCfg,
		verifier: compression.New(compressionCfg),
		ring:     ring,
		store:    store,
		backupID: backupID,
		dedup:    dedup,
	}
}

// Run uploads every task, bounded by MaxConcurrentUploads in-flight
// at once. It blocks until every task has either succeeded or
// permanently failed.
func (p *Pipeline) Run(ctx context.Context, tasks []Task) (Result, error) {
	limit := int64(p.cfg.MaxConcurrentUploads)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
	)

	for _, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return result, err
		}

		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			defer sem.Release(1)

			entry, failure := p.uploadOne(ctx, task)

			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				result.Failures = append(result.Failures, *failure)
			} else {
				result.Entries = append(result.Entries, *entry)
			}
		}(task)
	}

	wg.Wait()
	return result, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, task Task) (*manifest.FileEntry, *FileFailure) {
	plaintext, err := os.ReadFile(task.LocalPath)
	if err != nil {
		return nil, &FileFailure{LocalPath: task.LocalPath, RemotePath: task.RemotePath, Reason: err.Error()}
	}

	plainHash := HashData(plaintext, p.hashCfg)

	if p.dedup != nil && p.dedup.MightContain(plainHash) {
		if existing, err := p.store.Head(ctx, task.RemotePath); err == nil {
			return &manifest.FileEntry{
				LocalPath:   task.LocalPath,
				RemotePath:  task.RemotePath,
				Size:        existing.Size,
				ContentHash: plainHash,
				Compressed:  false,
				Encrypted:   true,
				Timestamp:   time.Now().UTC(),
			}, nil
		}
	}

	verified, err := p.verifier.Compress(plaintext)
	if err != nil {
		return nil, &FileFailure{LocalPath: task.LocalPath, RemotePath: task.RemotePath, Reason: err.Error()}
	}

	key, err := p.ring.Acquire()
	if err != nil {
		return nil, &FileFailure{LocalPath: task.LocalPath, RemotePath: task.RemotePath, Reason: err.Error()}
	}

	aad := skycrypto.BindAAD(p.backupID, task.RemotePath)
	ciphertext, err := key.Encrypt(verified.Data, aad)
	if err != nil {
		return nil, &FileFailure{LocalPath: task.LocalPath, RemotePath: task.RemotePath, Reason: err.Error()}
	}

	item, err := RetryUpload(ctx, p.cfg.MaxRetries, func(ctx context.Context) (objectstore.StorageItem, error) {
		return p.store.Upload(ctx, task.RemotePath, ciphertext, objectstore.UploadOptions{ContentHash: verified.CompressedHash})
	})
	if err != nil {
		return nil, &FileFailure{LocalPath: task.LocalPath, RemotePath: task.RemotePath, Reason: err.Error()}
	}

	if p.dedup != nil {
		p.dedup.Add(plainHash)
	}

	return &manifest.FileEntry{
		LocalPath:   task.LocalPath,
		RemotePath:  task.RemotePath,
		Size:        item.Size,
		ContentHash: plainHash,
		Compressed:  verified.WasCompressed,
		Encrypted:   true,
		Timestamp:   time.Now().UTC(),
	}, nil
}
