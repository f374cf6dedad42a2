package syncengine

import (
	"sync"
	"time"
)

// Resolution is the outcome of comparing a path's local and remote
// modification times.
type Resolution int

const (
	LocalWins Resolution = iota
	RemoteWins
)

func (r Resolution) String() string {
	if r == RemoteWins {
		return "remote_wins"
	}
	return "local_wins"
}

// ConflictRecord is one resolved conflict, kept for observability.
type ConflictRecord struct {
	Path        string
	Resolution  Resolution
	LocalMTime  time.Time
	HasLocal    bool
	RemoteMTime time.Time
	HasRemote   bool
	ResolvedAt  time.Time
}

// conflictRingCap bounds the observability ring (spec §4.H).
const conflictRingCap = 1000

// ConflictLog resolves local/remote mtime divergence with a
// deliberately simple newest-wins policy and keeps a bounded ring of
// past resolutions for observability. No three-way merge is
// attempted.
type ConflictLog struct {
	mu      sync.Mutex
	records []ConflictRecord
}

// NewConflictLog returns an empty ConflictLog.
func NewConflictLog() *ConflictLog {
	return &ConflictLog{}
}

// Resolve applies the newest-wins rule: strictly newer wins; an exact
// tie resolves to local; if only one side has an mtime, that side
// wins; if neither does, local wins. The resolution is appended to the
// bounded ring.
func (c *ConflictLog) Resolve(path string, localMTime time.Time, hasLocal bool, remoteMTime time.Time, hasRemote bool) Resolution {
	resolution := resolve(localMTime, hasLocal, remoteMTime, hasRemote)

	c.mu.Lock()
	c.records = append(c.records, ConflictRecord{
		Path:        path,
		Resolution:  resolution,
		LocalMTime:  localMTime,
		HasLocal:    hasLocal,
		RemoteMTime: remoteMTime,
		HasRemote:   hasRemote,
		ResolvedAt:  time.Now().UTC(),
	})
	if len(c.records) > conflictRingCap {
		c.records = c.records[len(c.records)-conflictRingCap:]
	}
	c.mu.Unlock()

	return resolution
}

func resolve(localMTime time.Time, hasLocal bool, remoteMTime time.Time, hasRemote bool) Resolution {
	switch {
	case hasLocal && hasRemote:
		if remoteMTime.After(localMTime) {
			return RemoteWins
		}
		return LocalWins
	case hasLocal && !hasRemote:
		return LocalWins
	case !hasLocal && hasRemote:
		return RemoteWins
	default:
		return LocalWins
	}
}

// Recent returns the most recent limit resolutions, newest last.
func (c *ConflictLog) Recent(limit int) []ConflictRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= 0 || limit >= len(c.records) {
		out := make([]ConflictRecord, len(c.records))
		copy(out, c.records)
		return out
	}
	out := make([]ConflictRecord, limit)
	copy(out, c.records[len(c.records)-limit:])
	return out
}
