package config

import "time"

// WatcherConfig tunes the filesystem watcher feeding the continuous
// sync queue (spec §4.H).
type WatcherConfig struct {
	// Roots are the directories watched recursively.
	Roots []string `yaml:"roots" json:"roots"`
	// IgnoreGlobs excludes matching paths from triggering sync events.
	IgnoreGlobs []string `yaml:"ignore_globs" json:"ignore_globs"`
	// Debounce coalesces rapid-fire events for the same path into one.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// DefaultWatcherConfig ignores common VCS and editor scratch directories
// and coalesces events within a 500ms window.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		IgnoreGlobs: []string{".git/**", "*.tmp", "*.swp", "~*"},
		Debounce:    500 * time.Millisecond,
	}
}

// SyncQueueConfig bounds the pending-change queue feeding the upload
// pipeline.
type SyncQueueConfig struct {
	// Capacity is the maximum number of distinct pending paths.
	Capacity int `yaml:"capacity" json:"capacity"`
	// MaxRetries is how many times a failed item is retried before
	// being dropped with an audit event.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// RetryBackoffBase is the base delay for exponential retry backoff.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" json:"retry_backoff_base"`
}

// DefaultSyncQueueConfig allows 10000 pending paths with up to 5
// retries at an exponential backoff starting at 1 second.
func DefaultSyncQueueConfig() SyncQueueConfig {
	return SyncQueueConfig{
		Capacity:         10_000,
		MaxRetries:       5,
		RetryBackoffBase: 1 * time.Second,
	}
}

// SyncStateConfig tunes the persisted sync state machine.
type SyncStateConfig struct {
	// HistorySize bounds the number of recent transitions retained for
	// observability.
	HistorySize int `yaml:"history_size" json:"history_size"`
	// UsePebble selects the embedded pebble-backed state store instead
	// of the reference JSON file store.
	UsePebble bool `yaml:"use_pebble" json:"use_pebble"`
}

// DefaultSyncStateConfig retains 256 history entries and uses the
// reference JSON store.
func DefaultSyncStateConfig() SyncStateConfig {
	return SyncStateConfig{
		HistorySize: 256,
		UsePebble:   false,
	}
}
