package syncengine

import (
	"sync"
	"time"

	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/internal/errs"
)

// SyncAction is the action a queued SyncItem will perform.
type SyncAction int

const (
	ActionUpload SyncAction = iota
	ActionDelete
	ActionRename
	ActionSkip
)

// SyncItem is one path queued for sync.
type SyncItem struct {
	Path       string
	Action     SyncAction
	QueuedAt   time.Time
	MTime      time.Time
	HasMTime   bool
	RetryCount int
	Priority   int
}

// eventToItem converts a normalized FileEvent into the SyncItem that
// should be queued for it. Metadata and Other events never reach the
// queue; the watcher drops them before handoff.
func eventToItem(ev FileEvent) (SyncItem, bool) {
	var action SyncAction
	switch ev.Kind {
	case Create, Modify:
		action = ActionUpload
	case Delete:
		action = ActionDelete
	case Rename:
		action = ActionRename
	default:
		return SyncItem{}, false
	}
	return SyncItem{
		Path:     ev.Path,
		Action:   action,
		QueuedAt: ev.Timestamp,
		Priority: 100,
	}, true
}

// Queue is a bounded priority queue of SyncItem: lower Priority value
// sorts first, ties broken by insertion order. An in-progress set
// prevents a path from being handed out twice concurrently.
type Queue struct {
	cfg config.SyncQueueConfig

	mu         sync.Mutex
	items      []SyncItem
	inProgress map[string]struct{}
}

// NewQueue builds an empty Queue bounded by cfg.Capacity.
func NewQueue(cfg config.SyncQueueConfig) *Queue {
	return &Queue{
		cfg:        cfg,
		inProgress: make(map[string]struct{}),
	}
}

// Add inserts item in priority order. If a SyncItem for the same path
// is already queued, the two are merged: the newer item replaces the
// older one but keeps the higher retry count, matching the teacher's
// "merge to the newer item, keep higher retry_count" rule.
func (q *Queue) Add(item SyncItem) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.cfg.Capacity {
		return false, errs.New(errs.QueueFull, "sync queue is full")
	}

	for i, existing := range q.items {
		if existing.Path != item.Path {
			continue
		}
		if item.QueuedAt.Before(existing.QueuedAt) {
			return false, nil
		}
		if existing.RetryCount > item.RetryCount {
			item.RetryCount = existing.RetryCount
		}
		q.items[i] = item
		return false, nil
	}

	q.insert(item)
	return true, nil
}

func (q *Queue) insert(item SyncItem) {
	pos := len(q.items)
	for i, existing := range q.items {
		if existing.Priority > item.Priority {
			pos = i
			break
		}
	}
	q.items = append(q.items, SyncItem{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
}

// Next pops the first item that is not already in progress, marking
// it in progress. It returns false if no eligible item is queued.
func (q *Queue) Next() (SyncItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if _, busy := q.inProgress[item.Path]; busy {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		q.inProgress[item.Path] = struct{}{}
		return item, true
	}
	return SyncItem{}, false
}

// Complete removes path from the in-progress set.
func (q *Queue) Complete(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inProgress, path)
}

// RetryBackoff returns the exponential delay before item should be
// requeued, per the `delay_ms * 2^(retry_count-1)` schedule. Callers
// must check Exhausted before scheduling a retry.
func (q *Queue) RetryBackoff(item SyncItem) time.Duration {
	retry := item.RetryCount
	if retry < 1 {
		retry = 1
	}
	delay := q.cfg.RetryBackoffBase
	for i := 1; i < retry; i++ {
		delay *= 2
	}
	return delay
}

// Exhausted reports whether item has used up its retry budget.
func (q *Queue) Exhausted(item SyncItem) bool {
	return item.RetryCount > q.cfg.MaxRetries
}

// Retry increments item's retry count and, if the budget is not
// exhausted, re-enqueues it; the caller is responsible for waiting
// RetryBackoff(item) beforehand. It returns false when the item's
// retries are exhausted and it was dropped instead of requeued.
func (q *Queue) Retry(item SyncItem) bool {
	item.RetryCount++
	if q.Exhausted(item) {
		return false
	}
	q.mu.Lock()
	q.insert(item)
	q.mu.Unlock()
	return true
}

// Len returns the number of items currently queued (excluding
// in-progress items already popped).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue. In-progress items are left untouched.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// IsEmpty reports whether the queue has no pending and no in-progress
// items.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && len(q.inProgress) == 0
}
