package syncengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveStrictlyNewerWins(t *testing.T) {
	now := time.Now()
	assert.Equal(t, LocalWins, resolve(now, true, now.Add(-time.Hour), true))
	assert.Equal(t, RemoteWins, resolve(now, true, now.Add(time.Hour), true))
}

func TestResolveExactTieIsLocal(t *testing.T) {
	now := time.Now()
	assert.Equal(t, LocalWins, resolve(now, true, now, true))
}

func TestResolveOneSidedMTimeWins(t *testing.T) {
	now := time.Now()
	assert.Equal(t, LocalWins, resolve(now, true, time.Time{}, false))
	assert.Equal(t, RemoteWins, resolve(time.Time{}, false, now, true))
}

func TestResolveNeitherHasMTimeDefaultsLocal(t *testing.T) {
	assert.Equal(t, LocalWins, resolve(time.Time{}, false, time.Time{}, false))
}

func TestConflictLogKeepsBoundedRing(t *testing.T) {
	log := NewConflictLog()
	for i := 0; i < conflictRingCap+10; i++ {
		log.Resolve("/a.txt", time.Now(), true, time.Now(), true)
	}
	assert.Len(t, log.Recent(0), conflictRingCap)
}

func TestConflictLogRecentReturnsNewestLast(t *testing.T) {
	log := NewConflictLog()
	log.Resolve("/a.txt", time.Now(), true, time.Time{}, false)
	log.Resolve("/b.txt", time.Time{}, false, time.Now(), true)

	recent := log.Recent(2)
	assert.Equal(t, "/b.txt", recent[len(recent)-1].Path)
}
