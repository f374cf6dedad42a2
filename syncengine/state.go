package syncengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/skylock-oss/skylock/config"
	"github.com/skylock-oss/skylock/internal/errs"
)

// Status is a path's position in the sync state machine.
type Status int

const (
	StatusNew Status = iota
	StatusModified
	StatusSyncing
	StatusSynced
	StatusFailed
	StatusConflict
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusSyncing:
		return "syncing"
	case StatusSynced:
		return "synced"
	case StatusFailed:
		return "failed"
	case StatusConflict:
		return "conflict"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileState is one path's current position in the sync state machine
// (spec §4.H transition diagram).
type FileState struct {
	Path           string    `json:"path"`
	Size           int64     `json:"size"`
	LocalMTime     time.Time `json:"local_mtime"`
	RemoteMTime    time.Time `json:"remote_mtime,omitempty"`
	HasRemoteMTime bool      `json:"has_remote_mtime"`
	ContentHash    string    `json:"content_hash,omitempty"`
	LastSynced     time.Time `json:"last_synced,omitempty"`
	HasLastSynced  bool      `json:"has_last_synced"`
	Status         Status    `json:"status"`
	SyncAttempts   int       `json:"sync_attempts"`
	LastError      string    `json:"last_error,omitempty"`
}

// HistoryEntry records one terminal sync attempt for observability.
type HistoryEntry struct {
	ID               int64         `json:"id"`
	Path             string        `json:"path"`
	Action           SyncAction    `json:"action"`
	Success          bool          `json:"success"`
	BytesTransferred int64         `json:"bytes_transferred"`
	Duration         time.Duration `json:"duration"`
	Error            string        `json:"error,omitempty"`
	SyncedAt         time.Time     `json:"synced_at"`
}

// Stats summarizes the current state table.
type Stats struct {
	TotalFiles         int
	TotalBytes         int64
	NewFiles           int
	SyncedFiles        int
	ModifiedFiles      int
	DeletedFiles       int
	SyncingFiles       int
	FailedFiles        int
	ConflictFiles      int
	HistoryEntries     int
	SuccessRateLast100 float64
}

// Store is the persistence interface for sync state, implemented by
// jsonStore (reference, single-process) and pebbleStore (embedded KV,
// spec §6 "a local embedded KV store is acceptable").
type Store interface {
	Get(path string) (FileState, bool, error)
	Upsert(state FileState) error
	MarkModified(path string, size int64, mtime time.Time) error
	MarkSyncing(path string) error
	MarkSynced(path string, contentHash string) error
	MarkFailed(path string, reason string) error
	MarkConflict(path string) error
	MarkDeleted(path string) error
	Remove(path string) (FileState, bool, error)
	RecordHistory(entry HistoryEntry) error
	RecentHistory(limit int) ([]HistoryEntry, error)
	FileHistory(path string) ([]HistoryEntry, error)
	PendingSync() ([]FileState, error)
	Retryable(maxAttempts int) ([]FileState, error)
	Stats() (Stats, error)
	Close() error
}

// OpenStore builds the Store selected by cfg: a pebble-backed store
// when cfg.UsePebble, otherwise the JSON reference store.
func OpenStore(cfg config.SyncStateConfig, path string) (Store, error) {
	if cfg.UsePebble {
		return openPebbleStore(path, cfg.HistorySize)
	}
	return openJSONStore(path, cfg.HistorySize)
}

// --- JSON reference store ---------------------------------------------

type jsonStore struct {
	mu            sync.Mutex
	path          string
	historySize   int
	states        map[string]FileState
	history       []HistoryEntry
	nextHistoryID int64
}

type jsonStoreDoc struct {
	States        map[string]FileState `json:"states"`
	History       []HistoryEntry       `json:"history"`
	NextHistoryID int64                `json:"next_history_id"`
}

func openJSONStore(path string, historySize int) (*jsonStore, error) {
	s := &jsonStore{
		path:          path,
		historySize:   historySize,
		states:        make(map[string]FileState),
		nextHistoryID: 1,
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "read sync state", err)
	}
	var doc jsonStoreDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.IoError, "parse sync state", err)
	}
	s.states = doc.States
	if s.states == nil {
		s.states = make(map[string]FileState)
	}
	s.history = doc.History
	s.nextHistoryID = doc.NextHistoryID
	if s.nextHistoryID < 1 {
		s.nextHistoryID = 1
	}
	return s, nil
}

func (s *jsonStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	doc := jsonStoreDoc{States: s.states, History: s.history, NextHistoryID: s.nextHistoryID}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize sync state", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errs.Wrap(errs.IoError, "create sync state dir", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(errs.IoError, "write sync state temp file", err)
	}
	return errs.Wrap(errs.IoError, "rename sync state into place", os.Rename(tmp, s.path))
}

func (s *jsonStore) Get(path string) (FileState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	return st, ok, nil
}

func (s *jsonStore) Upsert(state FileState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Path] = state
	return s.saveLocked()
}

func (s *jsonStore) MarkModified(path string, size int64, mtime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[path]; ok {
		st.Size = size
		st.LocalMTime = mtime
		st.Status = StatusModified
		s.states[path] = st
	} else {
		s.states[path] = FileState{Path: path, Size: size, LocalMTime: mtime, Status: StatusNew}
	}
	return s.saveLocked()
}

func (s *jsonStore) MarkSyncing(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	if !ok {
		return nil
	}
	st.Status = StatusSyncing
	st.SyncAttempts++
	s.states[path] = st
	return s.saveLocked()
}

func (s *jsonStore) MarkSynced(path string, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	if !ok {
		return nil
	}
	st.Status = StatusSynced
	st.LastSynced = time.Now().UTC()
	st.HasLastSynced = true
	st.ContentHash = contentHash
	st.LastError = ""
	s.states[path] = st
	return s.saveLocked()
}

func (s *jsonStore) MarkFailed(path string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	if !ok {
		return nil
	}
	st.Status = StatusFailed
	st.LastError = reason
	s.states[path] = st
	return s.saveLocked()
}

func (s *jsonStore) MarkConflict(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	if !ok {
		return nil
	}
	st.Status = StatusConflict
	s.states[path] = st
	return s.saveLocked()
}

func (s *jsonStore) MarkDeleted(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	if !ok {
		return nil
	}
	st.Status = StatusDeleted
	s.states[path] = st
	return s.saveLocked()
}

func (s *jsonStore) Remove(path string) (FileState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[path]
	delete(s.states, path)
	return st, ok, s.saveLocked()
}

func (s *jsonStore) RecordHistory(entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextHistoryID
	s.nextHistoryID++
	s.history = append(s.history, entry)
	if s.historySize > 0 && len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
	return s.saveLocked()
}

func (s *jsonStore) RecentHistory(limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lastN(s.history, limit), nil
}

func (s *jsonStore) FileHistory(path string) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []HistoryEntry
	for _, e := range s.history {
		if e.Path == path {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *jsonStore) PendingSync() ([]FileState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FileState
	for _, st := range s.states {
		if st.Status == StatusNew || st.Status == StatusModified || st.Status == StatusDeleted {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *jsonStore) Retryable(maxAttempts int) ([]FileState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FileState
	for _, st := range s.states {
		if st.Status == StatusFailed && st.SyncAttempts < maxAttempts {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *jsonStore) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{HistoryEntries: len(s.history)}
	for _, st := range s.states {
		stats.TotalFiles++
		stats.TotalBytes += st.Size
		switch st.Status {
		case StatusNew:
			stats.NewFiles++
		case StatusSynced:
			stats.SyncedFiles++
		case StatusModified:
			stats.ModifiedFiles++
		case StatusDeleted:
			stats.DeletedFiles++
		case StatusSyncing:
			stats.SyncingFiles++
		case StatusFailed:
			stats.FailedFiles++
		case StatusConflict:
			stats.ConflictFiles++
		}
	}
	recent := lastN(s.history, 100)
	if len(recent) > 0 {
		successes := 0
		for _, e := range recent {
			if e.Success {
				successes++
			}
		}
		stats.SuccessRateLast100 = float64(successes) / float64(len(recent)) * 100
	}
	return stats, nil
}

func (s *jsonStore) Close() error { return nil }

func lastN(entries []HistoryEntry, n int) []HistoryEntry {
	if n <= 0 || n >= len(entries) {
		out := make([]HistoryEntry, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]HistoryEntry, n)
	copy(out, entries[len(entries)-n:])
	return out
}

// --- pebble-backed store ------------------------------------------------

// pebbleStore persists FileState and HistoryEntry records as JSON
// values in an embedded pebble KV store, for deployments that want
// crash-safe state without a reference-JSON rewrite on every update.
type pebbleStore struct {
	mu            sync.Mutex
	db            *pebble.DB
	historySize   int
	nextHistoryID int64
}

const (
	stateKeyPrefix   = "state/"
	historyKeyPrefix = "history/"
)

func openPebbleStore(dir string, historySize int) (*pebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "open pebble sync state", err)
	}
	s := &pebbleStore{db: db, historySize: historySize, nextHistoryID: 1}
	if err := s.loadNextHistoryID(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *pebbleStore) loadNextHistoryID() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte(historyKeyPrefix)})
	if err != nil {
		return errs.Wrap(errs.IoError, "iterate sync history", err)
	}
	defer iter.Close()
	max := int64(0)
	for iter.SeekGE([]byte(historyKeyPrefix)); iter.Valid(); iter.Next() {
		var entry HistoryEntry
		if err := json.Unmarshal(iter.Value(), &entry); err == nil && entry.ID > max {
			max = entry.ID
		}
	}
	s.nextHistoryID = max + 1
	return nil
}

func (s *pebbleStore) stateKey(path string) []byte {
	return []byte(stateKeyPrefix + path)
}

func (s *pebbleStore) getState(path string) (FileState, bool, error) {
	value, closer, err := s.db.Get(s.stateKey(path))
	if err == pebble.ErrNotFound {
		return FileState{}, false, nil
	}
	if err != nil {
		return FileState{}, false, errs.Wrap(errs.IoError, "read sync state", err)
	}
	defer closer.Close()
	var st FileState
	if err := json.Unmarshal(value, &st); err != nil {
		return FileState{}, false, errs.Wrap(errs.IoError, "parse sync state", err)
	}
	return st, true, nil
}

func (s *pebbleStore) putState(st FileState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize sync state", err)
	}
	return errs.Wrap(errs.IoError, "write sync state", s.db.Set(s.stateKey(st.Path), data, pebble.Sync))
}

func (s *pebbleStore) Get(path string) (FileState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getState(path)
}

func (s *pebbleStore) Upsert(state FileState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putState(state)
}

func (s *pebbleStore) mutate(path string, fn func(*FileState) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok, err := s.getState(path)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !fn(&st) {
		return nil
	}
	return s.putState(st)
}

func (s *pebbleStore) MarkModified(path string, size int64, mtime time.Time) error {
	s.mu.Lock()
	st, ok, err := s.getState(path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if ok {
		st.Size = size
		st.LocalMTime = mtime
		st.Status = StatusModified
	} else {
		st = FileState{Path: path, Size: size, LocalMTime: mtime, Status: StatusNew}
	}
	err = s.putState(st)
	s.mu.Unlock()
	return err
}

func (s *pebbleStore) MarkSyncing(path string) error {
	return s.mutate(path, func(st *FileState) bool {
		st.Status = StatusSyncing
		st.SyncAttempts++
		return true
	})
}

func (s *pebbleStore) MarkSynced(path string, contentHash string) error {
	return s.mutate(path, func(st *FileState) bool {
		st.Status = StatusSynced
		st.LastSynced = time.Now().UTC()
		st.HasLastSynced = true
		st.ContentHash = contentHash
		st.LastError = ""
		return true
	})
}

func (s *pebbleStore) MarkFailed(path string, reason string) error {
	return s.mutate(path, func(st *FileState) bool {
		st.Status = StatusFailed
		st.LastError = reason
		return true
	})
}

func (s *pebbleStore) MarkConflict(path string) error {
	return s.mutate(path, func(st *FileState) bool {
		st.Status = StatusConflict
		return true
	})
}

func (s *pebbleStore) MarkDeleted(path string) error {
	return s.mutate(path, func(st *FileState) bool {
		st.Status = StatusDeleted
		return true
	})
}

func (s *pebbleStore) Remove(path string) (FileState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok, err := s.getState(path)
	if err != nil || !ok {
		return st, ok, err
	}
	return st, true, errs.Wrap(errs.IoError, "delete sync state", s.db.Delete(s.stateKey(path), pebble.Sync))
}

func (s *pebbleStore) RecordHistory(entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextHistoryID
	s.nextHistoryID++
	data, err := json.Marshal(entry)
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize sync history entry", err)
	}
	key := []byte(fmt.Sprintf("%s%020d", historyKeyPrefix, entry.ID))
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return errs.Wrap(errs.IoError, "write sync history entry", err)
	}
	return s.pruneHistoryLocked()
}

func (s *pebbleStore) pruneHistoryLocked() error {
	if s.historySize <= 0 {
		return nil
	}
	all, err := s.allHistoryLocked()
	if err != nil {
		return err
	}
	if len(all) <= s.historySize {
		return nil
	}
	toRemove := all[:len(all)-s.historySize]
	batch := s.db.NewBatch()
	for _, e := range toRemove {
		key := []byte(fmt.Sprintf("%s%020d", historyKeyPrefix, e.ID))
		if err := batch.Delete(key, nil); err != nil {
			return errs.Wrap(errs.IoError, "prune sync history", err)
		}
	}
	return errs.Wrap(errs.IoError, "commit sync history prune", batch.Commit(pebble.Sync))
}

func (s *pebbleStore) allHistoryLocked() ([]HistoryEntry, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte(historyKeyPrefix)})
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "iterate sync history", err)
	}
	defer iter.Close()

	var out []HistoryEntry
	for iter.SeekGE([]byte(historyKeyPrefix)); iter.Valid(); iter.Next() {
		var entry HistoryEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *pebbleStore) RecentHistory(limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.allHistoryLocked()
	if err != nil {
		return nil, err
	}
	return lastN(all, limit), nil
}

func (s *pebbleStore) FileHistory(path string) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.allHistoryLocked()
	if err != nil {
		return nil, err
	}
	var out []HistoryEntry
	for _, e := range all {
		if e.Path == path {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *pebbleStore) PendingSync() ([]FileState, error) {
	return s.filterStates(func(st FileState) bool {
		return st.Status == StatusNew || st.Status == StatusModified || st.Status == StatusDeleted
	})
}

func (s *pebbleStore) Retryable(maxAttempts int) ([]FileState, error) {
	return s.filterStates(func(st FileState) bool {
		return st.Status == StatusFailed && st.SyncAttempts < maxAttempts
	})
}

func (s *pebbleStore) filterStates(keep func(FileState) bool) ([]FileState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: []byte(stateKeyPrefix)})
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "iterate sync state", err)
	}
	defer iter.Close()

	var out []FileState
	for iter.SeekGE([]byte(stateKeyPrefix)); iter.Valid(); iter.Next() {
		var st FileState
		if err := json.Unmarshal(iter.Value(), &st); err != nil {
			continue
		}
		if keep(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *pebbleStore) Stats() (Stats, error) {
	states, err := s.filterStates(func(FileState) bool { return true })
	if err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	history, err := s.allHistoryLocked()
	s.mu.Unlock()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{HistoryEntries: len(history)}
	for _, st := range states {
		stats.TotalFiles++
		stats.TotalBytes += st.Size
		switch st.Status {
		case StatusNew:
			stats.NewFiles++
		case StatusSynced:
			stats.SyncedFiles++
		case StatusModified:
			stats.ModifiedFiles++
		case StatusDeleted:
			stats.DeletedFiles++
		case StatusSyncing:
			stats.SyncingFiles++
		case StatusFailed:
			stats.FailedFiles++
		case StatusConflict:
			stats.ConflictFiles++
		}
	}
	recent := lastN(history, 100)
	if len(recent) > 0 {
		successes := 0
		for _, e := range recent {
			if e.Success {
				successes++
			}
		}
		stats.SuccessRateLast100 = float64(successes) / float64(len(recent)) * 100
	}
	return stats, nil
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}
