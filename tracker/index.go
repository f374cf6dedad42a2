// Package tracker implements the change-tracking file index (spec
// §4.F): a snapshot of every tracked file's size and mtime, persisted
// between runs so the next backup can cheaply tell what changed
// without re-hashing everything.
package tracker

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skylock-oss/skylock/internal/errs"
)

// FileInfo is one tracked file's cheap-to-compute metadata, plus a
// lazily-computed content hash.
type FileInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Hash     string    `json:"hash,omitempty"`
}

// FileIndex is a point-in-time snapshot of every regular file under a
// set of tracked roots.
type FileIndex struct {
	mu          sync.RWMutex
	files       map[string]FileInfo
	CreatedAt   time.Time `json:"created_at"`
	TrackedDirs []string  `json:"tracked_dirs"`
}

// New returns an empty index over trackedDirs.
func New(trackedDirs []string) *FileIndex {
	return &FileIndex{
		files:       make(map[string]FileInfo),
		CreatedAt:   time.Now().UTC(),
		TrackedDirs: trackedDirs,
	}
}

// Build walks paths (files or directories) and records size/mtime for
// every regular file found. Symlinks are skipped.
func Build(paths []string) (*FileIndex, error) {
	idx := New(paths)

	for _, root := range paths {
		info, err := os.Lstat(root)
		if err != nil {
			return nil, errs.Wrap(errs.IoError, "stat tracked path", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}

		if !info.IsDir() {
			fi, err := fileInfoFor(root, info)
			if err != nil {
				return nil, err
			}
			idx.files[root] = fi
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type()&os.ModeSymlink != 0 {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			fi, err := fileInfoFor(path, info)
			if err != nil {
				return err
			}
			idx.files[path] = fi
			return nil
		})
		if err != nil {
			return nil, errs.Wrap(errs.IoError, "walk tracked directory", err)
		}
	}

	return idx, nil
}

func fileInfoFor(path string, info os.FileInfo) (FileInfo, error) {
	return FileInfo{
		Path:     path,
		Size:     info.Size(),
		Modified: info.ModTime().UTC(),
	}, nil
}

// FileCount returns the number of tracked files.
func (idx *FileIndex) FileCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.files)
}

// Get returns the recorded info for path, if tracked.
func (idx *FileIndex) Get(path string) (FileInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	fi, ok := idx.files[path]
	return fi, ok
}

// Files returns a snapshot copy of every tracked path's info.
func (idx *FileIndex) Files() map[string]FileInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]FileInfo, len(idx.files))
	for k, v := range idx.files {
		out[k] = v
	}
	return out
}

type indexJSON struct {
	Files       map[string]FileInfo `json:"files"`
	CreatedAt   time.Time           `json:"created_at"`
	TrackedDirs []string            `json:"tracked_dirs"`
}

// MarshalJSON serializes the index, including its file map.
func (idx *FileIndex) MarshalJSON() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return json.Marshal(indexJSON{
		Files:       idx.files,
		CreatedAt:   idx.CreatedAt,
		TrackedDirs: idx.TrackedDirs,
	})
}

// UnmarshalJSON restores an index previously produced by MarshalJSON.
func (idx *FileIndex) UnmarshalJSON(data []byte) error {
	var raw indexJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files = raw.Files
	if idx.files == nil {
		idx.files = make(map[string]FileInfo)
	}
	idx.CreatedAt = raw.CreatedAt
	idx.TrackedDirs = raw.TrackedDirs
	return nil
}

// Save writes the index to path as JSON, atomically (write to a temp
// file in the same directory, then rename).
func (idx *FileIndex) Save(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize file index", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Wrap(errs.IoError, "create index dir", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(errs.IoError, "write index temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.IoError, "rename index into place", err)
	}
	return nil
}

// Load reads an index previously written by Save.
func Load(path string) (*FileIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "read file index", err)
	}
	idx := &FileIndex{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, errs.Wrap(errs.IoError, "parse file index", err)
	}
	return idx, nil
}

// Exists reports whether an index file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
