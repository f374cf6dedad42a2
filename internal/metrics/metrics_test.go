package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestRecordRotationIncrementsByOutcome(t *testing.T) {
	m, reg := newTestRegistry(t)
	m.RecordRotation("success")
	m.RecordRotation("success")
	m.RecordRotation("failure")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.rotationsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rotationsTotal.WithLabelValues("failure")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordUploadOnlyAddsBytesAndDurationOnSuccess(t *testing.T) {
	m, _ := newTestRegistry(t)
	m.RecordUpload(true, 1024, 2*time.Second)
	m.RecordUpload(false, 9999, time.Minute)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploadsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploadsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(m.uploadBytes))
}

func TestRecordConflictLabelsByResolution(t *testing.T) {
	m, _ := newTestRegistry(t)
	m.RecordConflict("local_wins")
	m.RecordConflict("remote_wins")
	m.RecordConflict("local_wins")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.conflictsTotal.WithLabelValues("local_wins")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflictsTotal.WithLabelValues("remote_wins")))
}

func TestRecordAuditEventLabelsByCategoryAndSeverity(t *testing.T) {
	m, _ := newTestRegistry(t)
	m.RecordAuditEvent("key_management", "critical")
	m.RecordAuditEvent("key_management", "critical")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.auditEventsTotal.WithLabelValues("key_management", "critical")))
}

func TestSetQueueDepthReflectsLatestValue(t *testing.T) {
	m, _ := newTestRegistry(t)
	m.SetQueueDepth(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queueDepth))
	m.SetQueueDepth(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.queueDepth))
}

func TestRecordRateLimitCheckLabelsByStatus(t *testing.T) {
	m, _ := newTestRegistry(t)
	m.RecordRateLimitCheck("allowed")
	m.RecordRateLimitCheck("locked_out")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimitTotal.WithLabelValues("allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimitTotal.WithLabelValues("locked_out")))
}
