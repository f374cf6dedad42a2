package syncengine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylock-oss/skylock/audit"
	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/internal/logger"
	"github.com/skylock-oss/skylock/internal/metrics"
	"github.com/skylock-oss/skylock/objectstore"
	"github.com/skylock-oss/skylock/upload"
)

func newTestDaemon(t *testing.T) (*Daemon, objectstore.Provider) {
	t.Helper()

	dir := t.TempDir()
	longTermKey := bytes.Repeat([]byte{0x42}, 32)
	ring, err := upload.NewSessionKeyRing("backup-sync", longTermKey)
	require.NoError(t, err)

	store := objectstore.NewMemoryProvider()
	pipeline := upload.New(
		"backup-sync",
		config.DefaultUploadPipelineConfig(),
		config.DefaultParallelHashConfig(),
		config.DefaultCompressionConfig(),
		ring,
		store,
		upload.NewDedupFilter(100, 0.01),
	)

	stateStore, err := openJSONStore(filepath.Join(dir, "state.json"), 256)
	require.NoError(t, err)

	auditStorage, err := audit.OpenPebbleStorage(filepath.Join(dir, "audit"))
	require.NoError(t, err)
	auditLog := audit.NewLogger(audit.DefaultLoggerConfig(), auditStorage, logger.Noop())
	t.Cleanup(func() { _ = auditLog.Close() })

	remotePath := func(localPath string) string {
		return "backups/backup-sync/" + filepath.Base(localPath) + ".enc"
	}

	d := NewDaemon("backup-sync", nil, config.DefaultSyncQueueConfig(), stateStore, pipeline, store, remotePath, auditLog, logger.Noop())
	return d, store
}

func TestDaemonUploadsAndMarksSynced(t *testing.T) {
	d, store := newTestDaemon(t)

	dir := t.TempDir()
	localPath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("hello sync"), 0o644))

	item := SyncItem{Path: localPath, Action: ActionUpload}
	d.process(item)

	state, ok, err := d.state.Get(localPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSynced, state.Status)

	_, err = store.Download(context.Background(), "backups/backup-sync/a.txt.enc")
	assert.NoError(t, err)
}

func TestDaemonDeleteRemovesObjectAndMarksDeleted(t *testing.T) {
	d, store := newTestDaemon(t)

	dir := t.TempDir()
	localPath := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("to delete"), 0o644))

	d.process(SyncItem{Path: localPath, Action: ActionUpload})
	d.process(SyncItem{Path: localPath, Action: ActionDelete})

	state, ok, err := d.state.Get(localPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusDeleted, state.Status)

	_, err = store.Download(context.Background(), "backups/backup-sync/b.txt.enc")
	assert.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestDaemonRecordsUploadMetricOnSuccess(t *testing.T) {
	d, _ := newTestDaemon(t)
	reg := prometheus.NewRegistry()
	d.AttachMetrics(metrics.New(reg))

	dir := t.TempDir()
	localPath := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("metered upload"), 0o644))

	d.process(SyncItem{Path: localPath, Action: ActionUpload})

	expected := `
# HELP skylock_upload_total Files uploaded, labeled by outcome.
# TYPE skylock_upload_total counter
skylock_upload_total{outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "skylock_upload_total"))
}

func TestDaemonRecordsFailureHistoryForMissingFile(t *testing.T) {
	d, _ := newTestDaemon(t)

	item := SyncItem{Path: "/does/not/exist.txt", Action: ActionUpload}
	d.process(item)

	history, err := d.state.FileHistory(item.Path)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}
