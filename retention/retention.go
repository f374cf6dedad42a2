// Package retention decides which completed backups a retention sweep
// should delete: keep-last-N, keep-newer-than-N-days, and optional
// Grandfather-Father-Son (GFS) rotation, all bounded by a hard
// minimum-keep floor. It operates on plaintext ManifestHeader records
// (backup_id, timestamp) so a sweep never needs to decrypt a manifest
// just to decide whether to delete it.
package retention

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/manifest"
)

// Manager evaluates a RetentionPolicy against a set of backup headers.
type Manager struct {
	policy config.RetentionPolicy
}

// NewManager builds a Manager for policy.
func NewManager(policy config.RetentionPolicy) *Manager {
	return &Manager{policy: policy}
}

// CalculateDeletions returns the backup IDs a sweep should delete.
// Headers are never mutated; the minimum-keep floor is enforced both
// up front (skip entirely if at or below it) and while walking
// newest-to-oldest (stop marking deletions once only MinimumKeep
// would remain).
func (m *Manager) CalculateDeletions(headers []manifest.ManifestHeader) []string {
	if len(headers) <= m.policy.MinimumKeep {
		return nil
	}

	sorted := make([]manifest.ManifestHeader, len(headers))
	copy(sorted, headers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	now := time.Now().UTC()
	var toDelete []string
	var toKeep []manifest.ManifestHeader

	for _, h := range sorted {
		if m.shouldKeep(h, toKeep, now) {
			toKeep = append(toKeep, h)
			continue
		}
		if len(sorted)-len(toDelete) > m.policy.MinimumKeep {
			toDelete = append(toDelete, h.BackupID)
		}
	}
	return toDelete
}

func (m *Manager) shouldKeep(h manifest.ManifestHeader, alreadyKept []manifest.ManifestHeader, now time.Time) bool {
	if m.policy.KeepLast > 0 && len(alreadyKept) < m.policy.KeepLast {
		return true
	}

	if m.policy.KeepDays > 0 {
		cutoff := now.AddDate(0, 0, -m.policy.KeepDays)
		if h.Timestamp.After(cutoff) {
			return true
		}
	}

	if m.policy.Gfs != nil && m.shouldKeepForGfs(h, alreadyKept, m.policy.Gfs, now) {
		return true
	}

	return false
}

func (m *Manager) shouldKeepForGfs(h manifest.ManifestHeader, alreadyKept []manifest.ManifestHeader, gfs *config.GfsPolicy, now time.Time) bool {
	age := now.Sub(h.Timestamp)

	if gfs.KeepHourly > 0 && age < time.Duration(gfs.KeepHourly)*time.Hour {
		hourStart := h.Timestamp.Truncate(time.Hour)
		if !hasEarlierInBucket(alreadyKept, h, func(other manifest.ManifestHeader) bool {
			return other.Timestamp.Truncate(time.Hour).Equal(hourStart)
		}) {
			return true
		}
	}

	if gfs.KeepDaily > 0 && age < time.Duration(gfs.KeepDaily)*24*time.Hour {
		y, mo, d := h.Timestamp.Date()
		if !hasEarlierInBucket(alreadyKept, h, func(other manifest.ManifestHeader) bool {
			oy, omo, od := other.Timestamp.Date()
			return oy == y && omo == mo && od == d
		}) {
			return true
		}
	}

	if gfs.KeepWeekly > 0 && age < time.Duration(gfs.KeepWeekly)*7*24*time.Hour {
		wy, ww := h.Timestamp.ISOWeek()
		if !hasEarlierInBucket(alreadyKept, h, func(other manifest.ManifestHeader) bool {
			oy, ow := other.Timestamp.ISOWeek()
			return oy == wy && ow == ww
		}) {
			return true
		}
	}

	if gfs.KeepMonthly > 0 {
		cutoff := now.AddDate(0, 0, -gfs.KeepMonthly*30)
		if h.Timestamp.After(cutoff) {
			y, mo, _ := h.Timestamp.Date()
			if !hasEarlierInBucket(alreadyKept, h, func(other manifest.ManifestHeader) bool {
				oy, omo, _ := other.Timestamp.Date()
				return oy == y && omo == mo
			}) {
				return true
			}
		}
	}

	if gfs.KeepYearly > 0 {
		cutoff := now.AddDate(0, 0, -gfs.KeepYearly*365)
		if h.Timestamp.After(cutoff) {
			y := h.Timestamp.Year()
			if !hasEarlierInBucket(alreadyKept, h, func(other manifest.ManifestHeader) bool {
				return other.Timestamp.Year() == y
			}) {
				return true
			}
		}
	}

	return false
}

// hasEarlierInBucket reports whether alreadyKept contains a header in
// the same bucket as h that is newer than h — i.e. h would be a
// second-or-later entry in that bucket and GFS has already kept one.
func hasEarlierInBucket(alreadyKept []manifest.ManifestHeader, h manifest.ManifestHeader, sameBucket func(manifest.ManifestHeader) bool) bool {
	for _, other := range alreadyKept {
		if sameBucket(other) && other.Timestamp.After(h.Timestamp) {
			return true
		}
	}
	return false
}

// Summarize renders the active policy as a short human-readable line,
// useful for logging what a sweep is about to apply.
func (m *Manager) Summarize() string {
	var parts []string

	if m.policy.KeepLast > 0 {
		parts = append(parts, fmt.Sprintf("Keep last %d backups", m.policy.KeepLast))
	}
	if m.policy.KeepDays > 0 {
		parts = append(parts, fmt.Sprintf("Keep backups from last %d days", m.policy.KeepDays))
	}
	if m.policy.Gfs != nil {
		if gfsSummary := summarizeGfs(m.policy.Gfs); gfsSummary != "" {
			parts = append(parts, "GFS: "+gfsSummary)
		}
	}
	parts = append(parts, fmt.Sprintf("Minimum keep: %d backups", m.policy.MinimumKeep))

	return strings.Join(parts, " | ")
}

func summarizeGfs(gfs *config.GfsPolicy) string {
	var parts []string
	if gfs.KeepHourly > 0 {
		parts = append(parts, fmt.Sprintf("%dh hourly", gfs.KeepHourly))
	}
	if gfs.KeepDaily > 0 {
		parts = append(parts, fmt.Sprintf("%dd daily", gfs.KeepDaily))
	}
	if gfs.KeepWeekly > 0 {
		parts = append(parts, fmt.Sprintf("%dw weekly", gfs.KeepWeekly))
	}
	if gfs.KeepMonthly > 0 {
		parts = append(parts, fmt.Sprintf("%dm monthly", gfs.KeepMonthly))
	}
	if gfs.KeepYearly > 0 {
		parts = append(parts, fmt.Sprintf("%dy yearly", gfs.KeepYearly))
	}
	return strings.Join(parts, ", ")
}
