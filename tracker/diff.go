package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/skylock-oss/skylock/internal/errs"
)

// ChangeType classifies how a tracked path differs between two
// FileIndex snapshots.
type ChangeType int

const (
	// Added means the path is new since the prior index.
	Added ChangeType = iota
	// Removed means the path was present before and no longer exists.
	Removed
	// Modified means size/mtime differ and the content hash confirms
	// the content actually changed.
	Modified
	// MetadataChanged means size/mtime differ but the content hash is
	// unchanged (e.g. a touch with no edit).
	MetadataChanged
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "Added"
	case Removed:
		return "Removed"
	case Modified:
		return "Modified"
	case MetadataChanged:
		return "MetadataChanged"
	default:
		return "Unknown"
	}
}

// Change is one detected difference between two index snapshots.
type Change struct {
	Path       string
	ChangeType ChangeType
	OldInfo    *FileInfo
	NewInfo    *FileInfo
}

// ComputeHash reads path and returns the hex SHA-256 of its content.
func ComputeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.IoError, "open file for hashing", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errs.Wrap(errs.IoError, "read file for hashing", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DetectChanges builds a current index over paths and diffs it
// against idx, classifying every difference per spec §4.F:
//
//   - path in current only            -> Added
//   - path in idx only                -> Removed
//   - both, (size,mtime) differ, hash differs -> Modified
//   - both, (size,mtime) differ, hash same    -> MetadataChanged
//   - both, (size,mtime) identical            -> no change, no event
//
// An entry in idx with no stored hash has nothing to compare against,
// so a (size,mtime) change to it is reported as Modified.
func (idx *FileIndex) DetectChanges(paths []string) ([]Change, error) {
	current, err := Build(paths)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	oldFiles := idx.files
	idx.mu.RUnlock()

	var changes []Change

	for path, newInfo := range current.Files() {
		newInfo := newInfo
		oldInfo, existed := oldFiles[path]
		if !existed {
			changes = append(changes, Change{Path: path, ChangeType: Added, NewInfo: &newInfo})
			continue
		}

		if newInfo.Size == oldInfo.Size && newInfo.Modified.Equal(oldInfo.Modified) {
			continue
		}

		newHash, err := ComputeHash(path)
		if err != nil {
			return nil, err
		}

		oldInfoCopy := oldInfo
		if oldInfo.Hash == "" || oldInfo.Hash != newHash {
			changes = append(changes, Change{Path: path, ChangeType: Modified, OldInfo: &oldInfoCopy, NewInfo: &newInfo})
		} else {
			changes = append(changes, Change{Path: path, ChangeType: MetadataChanged, OldInfo: &oldInfoCopy, NewInfo: &newInfo})
		}
	}

	for path, oldInfo := range oldFiles {
		oldInfo := oldInfo
		if _, stillPresent := current.Get(path); !stillPresent {
			changes = append(changes, Change{Path: path, ChangeType: Removed, OldInfo: &oldInfo})
		}
	}

	return changes, nil
}

// ChangedPaths returns only the Added and Modified paths from
// DetectChanges — the set that actually needs (re)uploading.
func (idx *FileIndex) ChangedPaths(paths []string) ([]string, error) {
	changes, err := idx.DetectChanges(paths)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range changes {
		if c.ChangeType == Added || c.ChangeType == Modified {
			out = append(out, c.Path)
		}
	}
	return out, nil
}

// Tracker manages per-backup file indexes plus a "latest" pointer,
// giving each backup run a cheap way to diff against the prior one.
type Tracker struct {
	indexDir string
}

// NewTracker builds a Tracker persisting indexes under indexDir.
func NewTracker(indexDir string) *Tracker {
	return &Tracker{indexDir: indexDir}
}

func (t *Tracker) indexPath(backupID string) string {
	return filepath.Join(t.indexDir, backupID+".index.json")
}

func (t *Tracker) latestIndexPath() string {
	return filepath.Join(t.indexDir, "latest.index.json")
}

// SaveIndex persists idx under backupID and also overwrites the
// "latest" pointer.
func (t *Tracker) SaveIndex(backupID string, idx *FileIndex) error {
	if err := idx.Save(t.indexPath(backupID)); err != nil {
		return err
	}
	return idx.Save(t.latestIndexPath())
}

// LoadIndex loads the index saved for backupID.
func (t *Tracker) LoadIndex(backupID string) (*FileIndex, error) {
	return Load(t.indexPath(backupID))
}

// LoadLatestIndex loads the "latest" pointer index.
func (t *Tracker) LoadLatestIndex() (*FileIndex, error) {
	return Load(t.latestIndexPath())
}

// HasLatestIndex reports whether a "latest" index has been saved yet.
func (t *Tracker) HasLatestIndex() bool {
	return Exists(t.latestIndexPath())
}

// DetectChangesSinceLastBackup diffs paths against the latest saved
// index, or treats every file as Added if there is no prior index.
func (t *Tracker) DetectChangesSinceLastBackup(paths []string) ([]Change, error) {
	if !t.HasLatestIndex() {
		current, err := Build(paths)
		if err != nil {
			return nil, err
		}
		var changes []Change
		for path, info := range current.Files() {
			info := info
			changes = append(changes, Change{Path: path, ChangeType: Added, NewInfo: &info})
		}
		return changes, nil
	}

	last, err := t.LoadLatestIndex()
	if err != nil {
		return nil, err
	}
	return last.DetectChanges(paths)
}

// ChangedPathsSinceLastBackup returns the Added/Modified subset of
// DetectChangesSinceLastBackup.
func (t *Tracker) ChangedPathsSinceLastBackup(paths []string) ([]string, error) {
	changes, err := t.DetectChangesSinceLastBackup(paths)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range changes {
		if c.ChangeType == Added || c.ChangeType == Modified {
			out = append(out, c.Path)
		}
	}
	return out, nil
}
