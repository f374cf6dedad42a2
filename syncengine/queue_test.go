package syncengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylock-oss/skylock/config"
)

func testQueueConfig() config.SyncQueueConfig {
	return config.SyncQueueConfig{
		Capacity:         10,
		MaxRetries:       3,
		RetryBackoffBase: 10 * time.Millisecond,
	}
}

func TestQueueAddAndNext(t *testing.T) {
	q := NewQueue(testQueueConfig())

	added, err := q.Add(SyncItem{Path: "/a.txt", Action: ActionUpload, QueuedAt: time.Now(), Priority: 100})
	require.NoError(t, err)
	assert.True(t, added)

	item, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "/a.txt", item.Path)

	_, ok = q.Next()
	assert.False(t, ok, "item is in progress and should not be returned twice")
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewQueue(testQueueConfig())

	_, _ = q.Add(SyncItem{Path: "/low.txt", Priority: 200, QueuedAt: time.Now()})
	_, _ = q.Add(SyncItem{Path: "/high.txt", Priority: 50, QueuedAt: time.Now()})
	_, _ = q.Add(SyncItem{Path: "/medium.txt", Priority: 100, QueuedAt: time.Now()})

	first, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "/high.txt", first.Path)

	second, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "/medium.txt", second.Path)
}

func TestQueueDuplicatePathMergesKeepingHigherRetryCount(t *testing.T) {
	q := NewQueue(testQueueConfig())

	now := time.Now()
	_, _ = q.Add(SyncItem{Path: "/a.txt", QueuedAt: now, RetryCount: 2, Priority: 100})
	added, err := q.Add(SyncItem{Path: "/a.txt", QueuedAt: now.Add(time.Second), RetryCount: 0, Priority: 100})
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, q.Len())
	item, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, 2, item.RetryCount)
}

func TestQueueFullReturnsError(t *testing.T) {
	cfg := testQueueConfig()
	cfg.Capacity = 1
	q := NewQueue(cfg)

	_, err := q.Add(SyncItem{Path: "/a.txt", QueuedAt: time.Now()})
	require.NoError(t, err)

	_, err = q.Add(SyncItem{Path: "/b.txt", QueuedAt: time.Now()})
	assert.Error(t, err)
}

func TestQueueCompleteAllowsReprocessing(t *testing.T) {
	q := NewQueue(testQueueConfig())
	_, _ = q.Add(SyncItem{Path: "/a.txt", QueuedAt: time.Now()})

	item, ok := q.Next()
	require.True(t, ok)
	q.Complete(item.Path)

	_, _ = q.Add(SyncItem{Path: "/a.txt", QueuedAt: time.Now()})
	_, ok = q.Next()
	assert.True(t, ok)
}

func TestQueueRetryBackoffDoublesPerAttempt(t *testing.T) {
	q := NewQueue(testQueueConfig())
	base := q.cfg.RetryBackoffBase

	assert.Equal(t, base, q.RetryBackoff(SyncItem{RetryCount: 1}))
	assert.Equal(t, base*2, q.RetryBackoff(SyncItem{RetryCount: 2}))
	assert.Equal(t, base*4, q.RetryBackoff(SyncItem{RetryCount: 3}))
}

func TestQueueExhaustedAfterMaxRetries(t *testing.T) {
	q := NewQueue(testQueueConfig())
	assert.False(t, q.Exhausted(SyncItem{RetryCount: 3}))
	assert.True(t, q.Exhausted(SyncItem{RetryCount: 4}))
}

func TestQueueRetryDropsWhenExhausted(t *testing.T) {
	q := NewQueue(testQueueConfig())
	ok := q.Retry(SyncItem{Path: "/a.txt", RetryCount: 3})
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueueIsEmpty(t *testing.T) {
	q := NewQueue(testQueueConfig())
	assert.True(t, q.IsEmpty())

	_, _ = q.Add(SyncItem{Path: "/a.txt", QueuedAt: time.Now()})
	assert.False(t, q.IsEmpty())
}
