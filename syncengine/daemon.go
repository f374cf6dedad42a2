package syncengine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skylock-oss/skylock/audit"
	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/internal/logger"
	"github.com/skylock-oss/skylock/internal/metrics"
	"github.com/skylock-oss/skylock/objectstore"
	"github.com/skylock-oss/skylock/upload"
)

// gracePeriod bounds how long a loop may take to finish its current
// item after shutdown is signaled (spec §5 cancellation model).
const gracePeriod = 5 * time.Second

// RemotePathFunc maps a local filesystem path to the logical remote
// path it is uploaded under.
type RemotePathFunc func(localPath string) string

// Daemon wires the watcher, queue, state store, conflict resolver,
// and upload pipeline into the single-process continuous-sync loop
// (spec §4.H).
type Daemon struct {
	backupID   string
	watcher    *Watcher
	queue      *Queue
	state      Store
	conflicts  *ConflictLog
	pipeline   *upload.Pipeline
	store      objectstore.Provider
	remotePath RemotePathFunc
	auditLog   *audit.Logger
	log        logger.Logger
	metrics    *metrics.Registry

	shutdown chan struct{}
	done     chan struct{}
}

// AttachMetrics wires a metrics registry into the daemon so uploads,
// conflicts, retry exhaustion, and queue depth are reported. Optional;
// a Daemon with no registry attached simply skips recording.
func (d *Daemon) AttachMetrics(m *metrics.Registry) {
	d.metrics = m
}

// NewDaemon assembles a Daemon from its already-constructed parts.
func NewDaemon(
	backupID string,
	watcher *Watcher,
	queueCfg config.SyncQueueConfig,
	state Store,
	pipeline *upload.Pipeline,
	store objectstore.Provider,
	remotePath RemotePathFunc,
	auditLog *audit.Logger,
	log logger.Logger,
) *Daemon {
	if log == nil {
		log = logger.Noop()
	}
	return &Daemon{
		backupID:   backupID,
		watcher:    watcher,
		queue:      NewQueue(queueCfg),
		state:      state,
		conflicts:  NewConflictLog(),
		pipeline:   pipeline,
		store:      store,
		remotePath: remotePath,
		auditLog:   auditLog,
		log:        log,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// InitialScan walks every watched root and enqueues a synthetic Modify
// event for any path whose (size, mtime) doesn't match the stored
// state, and records brand-new paths as New.
func (d *Daemon) InitialScan(roots []string) error {
	for _, root := range roots {
		err := walkRegularFiles(root, func(path string, size int64, mtime time.Time) {
			existing, ok, _ := d.state.Get(path)
			if ok && existing.Size == size && existing.LocalMTime.Equal(mtime) {
				return
			}
			_ = d.state.MarkModified(path, size, mtime)
			_, _ = d.queue.Add(SyncItem{
				Path:     path,
				Action:   ActionUpload,
				QueuedAt: time.Now().UTC(),
				MTime:    mtime,
				HasMTime: true,
				Priority: 100,
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func walkRegularFiles(root string, visit func(path string, size int64, mtime time.Time)) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("syncengine: scan %s: %w", root, err)
	}
	for _, entry := range entries {
		full := root + string(os.PathSeparator) + entry.Name()
		if entry.IsDir() {
			if err := walkRegularFiles(full, visit); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		visit(full, info.Size(), info.ModTime().UTC())
	}
	return nil
}

// Start launches the watcher, the ingest loop (watcher batches into
// the queue), and a worker loop draining the queue into the upload
// pipeline. Call Stop to shut everything down.
func (d *Daemon) Start() {
	d.watcher.Start()
	go d.ingestLoop()
	go d.workerLoop()
}

// Stop broadcasts shutdown and waits up to gracePeriod for the worker
// loop to finish its current item. The ingest loop is signaled to exit
// but Stop does not wait for it.
func (d *Daemon) Stop() {
	close(d.shutdown)
	d.watcher.Stop()

	select {
	case <-d.done:
	case <-time.After(gracePeriod):
		d.log.Warn("syncengine: grace period elapsed before clean shutdown")
	}
}

func (d *Daemon) ingestLoop() {
	for {
		select {
		case <-d.shutdown:
			return
		case batch, ok := <-d.watcher.Batches():
			if !ok {
				return
			}
			for _, ev := range batch.Events {
				item, ok := eventToItem(ev)
				if !ok {
					continue
				}
				if _, err := d.queue.Add(item); err != nil {
					d.log.Warn("sync queue full, dropping event", logger.String("path", ev.Path), logger.Err(err))
				}
			}
		}
	}
}

func (d *Daemon) workerLoop() {
	defer close(d.done)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			if d.metrics != nil {
				d.metrics.SetQueueDepth(d.queue.Len())
			}
			item, ok := d.queue.Next()
			if !ok {
				continue
			}
			d.process(item)
		}
	}
}

func (d *Daemon) process(item SyncItem) {
	start := time.Now()
	remotePath := d.remotePath(item.Path)

	err := d.handle(item, remotePath)
	duration := time.Since(start)

	success := err == nil
	_ = d.state.RecordHistory(HistoryEntry{
		Path:     item.Path,
		Action:   item.Action,
		Success:  success,
		Duration: duration,
		SyncedAt: time.Now().UTC(),
		Error:    errString(err),
	})

	if success {
		d.queue.Complete(item.Path)
		return
	}

	d.queue.Complete(item.Path)
	if d.queue.Exhausted(item) {
		event := audit.New(audit.SyncRetryExhausted, audit.ServiceActor("syncengine"), audit.Failure).
			WithSeverity(audit.Critical).
			WithContext("path", item.Path).
			WithError(errString(err))
		d.auditLog.Log(event)
		if d.metrics != nil {
			d.metrics.RecordAuditEvent(event.Category(), event.Severity.String())
		}
		_ = d.state.MarkFailed(item.Path, errString(err))
		return
	}

	backoff := d.queue.RetryBackoff(item)
	go func(it SyncItem) {
		select {
		case <-time.After(backoff):
		case <-d.shutdown:
			return
		}
		d.queue.Retry(it)
	}(item)
}

func (d *Daemon) handle(item SyncItem, remotePath string) error {
	switch item.Action {
	case ActionDelete:
		_ = d.state.MarkDeleted(item.Path)
		return d.store.Delete(context.Background(), remotePath)
	case ActionSkip:
		return nil
	default:
		return d.upload(item, remotePath)
	}
}

func (d *Daemon) upload(item SyncItem, remotePath string) error {
	if resolution := d.checkConflict(item, remotePath); resolution == RemoteWins {
		return nil
	}

	if _, ok, _ := d.state.Get(item.Path); !ok {
		if info, err := os.Stat(item.Path); err == nil {
			_ = d.state.MarkModified(item.Path, info.Size(), info.ModTime().UTC())
		}
	}
	_ = d.state.MarkSyncing(item.Path)

	start := time.Now()
	result, err := d.pipeline.Run(context.Background(), []upload.Task{{LocalPath: item.Path, RemotePath: remotePath}})
	duration := time.Since(start)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordUpload(false, 0, duration)
		}
		return err
	}
	if len(result.Failures) > 0 {
		if d.metrics != nil {
			d.metrics.RecordUpload(false, 0, duration)
		}
		return fmt.Errorf("syncengine: upload failed: %s", result.Failures[0].Reason)
	}

	contentHash := ""
	var size int64
	if len(result.Entries) > 0 {
		contentHash = result.Entries[0].ContentHash
		size = result.Entries[0].Size
	}
	if d.metrics != nil {
		d.metrics.RecordUpload(true, size, duration)
	}
	return d.state.MarkSynced(item.Path, contentHash)
}

// checkConflict compares the item's local mtime against the object
// store's current mtime for remotePath, applying the
// newest-wins policy (spec §4.H "Conflict resolution").
func (d *Daemon) checkConflict(item SyncItem, remotePath string) Resolution {
	existing, err := d.store.Head(context.Background(), remotePath)
	if err != nil {
		return LocalWins
	}

	resolution := d.conflicts.Resolve(item.Path, item.MTime, item.HasMTime, existing.ModTime, true)
	if d.metrics != nil {
		d.metrics.RecordConflict(resolution.String())
	}
	if resolution == RemoteWins {
		_ = d.state.MarkConflict(item.Path)
		event := audit.New(audit.SyncConflict, audit.ServiceActor("syncengine"), audit.Success).
			WithContext("path", item.Path).
			WithContext("resolution", resolution.String())
		d.auditLog.Log(event)
		if d.metrics != nil {
			d.metrics.RecordAuditEvent(event.Category(), event.Severity.String())
		}
	}
	return resolution
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
