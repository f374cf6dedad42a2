// Package metrics exposes the Prometheus counters and histograms
// every subsystem reports through: key rotations, uploads, sync
// conflicts, and audit events. One Registry is constructed at
// startup and threaded through via struct fields, the same way
// internal/logger is.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns every metric this backup core exports and the
// prometheus.Registerer they're registered against.
type Registry struct {
	rotationsTotal   *prometheus.CounterVec
	uploadsTotal     *prometheus.CounterVec
	uploadBytes      prometheus.Counter
	uploadDuration   prometheus.Histogram
	conflictsTotal   *prometheus.CounterVec
	auditEventsTotal *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	rateLimitTotal   *prometheus.CounterVec
}

// New registers every metric against reg and returns the Registry
// handle. Pass prometheus.NewRegistry() for an isolated registry (the
// usual case in tests) or prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		rotationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skylock",
			Subsystem: "rotation",
			Name:      "total",
			Help:      "Key rotations performed, labeled by outcome.",
		}, []string{"outcome"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skylock",
			Subsystem: "upload",
			Name:      "total",
			Help:      "Files uploaded, labeled by outcome.",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skylock",
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Plaintext bytes successfully uploaded.",
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skylock",
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Per-file upload duration, compress+encrypt+write.",
			Buckets:   prometheus.DefBuckets,
		}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skylock",
			Subsystem: "sync",
			Name:      "conflicts_total",
			Help:      "Sync conflicts resolved, labeled by resolution.",
		}, []string{"resolution"}),
		auditEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skylock",
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Audit events logged, labeled by category and severity.",
		}, []string{"category", "severity"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "skylock",
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Current number of items pending in the sync queue.",
		}),
		rateLimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skylock",
			Subsystem: "ratelimit",
			Name:      "checks_total",
			Help:      "Rate limiter checks, labeled by result status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.rotationsTotal,
		r.uploadsTotal,
		r.uploadBytes,
		r.uploadDuration,
		r.conflictsTotal,
		r.auditEventsTotal,
		r.queueDepth,
		r.rateLimitTotal,
	)
	return r
}

// RecordRotation counts a key rotation by outcome ("success" or
// "failure").
func (r *Registry) RecordRotation(outcome string) {
	r.rotationsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload counts one completed upload attempt, and on success
// adds bytes and duration to the running totals.
func (r *Registry) RecordUpload(success bool, bytes int64, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
		r.uploadBytes.Add(float64(bytes))
		r.uploadDuration.Observe(duration.Seconds())
	}
	r.uploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordConflict counts a sync conflict resolution ("local_wins" or
// "remote_wins").
func (r *Registry) RecordConflict(resolution string) {
	r.conflictsTotal.WithLabelValues(resolution).Inc()
}

// RecordAuditEvent counts one audit event by category and severity.
func (r *Registry) RecordAuditEvent(category, severity string) {
	r.auditEventsTotal.WithLabelValues(category, severity).Inc()
}

// SetQueueDepth reports the sync queue's current pending count.
func (r *Registry) SetQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// RecordRateLimitCheck counts a rate limiter check by result status
// ("allowed", "limited", or "locked_out").
func (r *Registry) RecordRateLimitCheck(status string) {
	r.rateLimitTotal.WithLabelValues(status).Inc()
}
