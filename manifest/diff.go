package manifest

import (
	"sort"
	"time"
)

// FileDiffEntry describes one file present in only one side of a
// backup comparison.
type FileDiffEntry struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	Compressed  bool   `json:"compressed"`
}

// FileModification describes a file present in both backups whose
// content hash changed.
type FileModification struct {
	Path               string `json:"path"`
	SizeOld            int64  `json:"size_old"`
	SizeNew            int64  `json:"size_new"`
	SizeDelta          int64  `json:"size_delta"`
	HashOld            string `json:"hash_old"`
	HashNew            string `json:"hash_new"`
	CompressionChanged bool   `json:"compression_changed"`
}

// FileMove describes a file whose content hash is unchanged but whose
// path moved between the two backups.
type FileMove struct {
	PathOld     string `json:"path_old"`
	PathNew     string `json:"path_new"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
}

// DiffSummary totals a BackupDiff for quick reporting without walking
// every entry.
type DiffSummary struct {
	FilesAdded     int   `json:"files_added_count"`
	FilesRemoved   int   `json:"files_removed_count"`
	FilesModified  int   `json:"files_modified_count"`
	FilesMoved     int   `json:"files_moved_count"`
	FilesUnchanged int   `json:"files_unchanged_count"`
	SizeAdded      int64 `json:"size_added"`
	SizeRemoved    int64 `json:"size_removed"`
	SizeDelta      int64 `json:"size_delta"`
}

// BackupDiff is the result of comparing two already-completed backups'
// manifests against each other — distinct from the change tracker,
// which compares live filesystem state against one index. Used to
// answer "what changed between backup A and backup B" for browsing or
// reporting, including move/rename detection via matching content
// hashes.
type BackupDiff struct {
	BackupIDOld   string             `json:"backup_id_old"`
	BackupIDNew   string             `json:"backup_id_new"`
	TimestampOld  time.Time          `json:"timestamp_old"`
	TimestampNew  time.Time          `json:"timestamp_new"`
	FilesAdded    []FileDiffEntry    `json:"files_added"`
	FilesRemoved  []FileDiffEntry    `json:"files_removed"`
	FilesModified []FileModification `json:"files_modified"`
	FilesMoved    []FileMove         `json:"files_moved"`
	Summary       DiffSummary        `json:"summary"`
}

// DiffBackups compares old and new's file listings and classifies
// every entry as added, removed, modified, moved, or unchanged. A file
// absent from new by path but present elsewhere in new under a path
// that has the same content hash and doesn't collide with an
// unprocessed old path is a move, not an add+remove pair.
func DiffBackups(old, newManifest *BackupManifest) BackupDiff {
	oldFiles := make(map[string]FileEntry, len(old.Files))
	for _, f := range old.Files {
		oldFiles[f.LocalPath] = f
	}
	newFiles := make(map[string]FileEntry, len(newManifest.Files))
	for _, f := range newManifest.Files {
		newFiles[f.LocalPath] = f
	}

	oldHashToPaths := make(map[string][]string)
	for _, f := range old.Files {
		oldHashToPaths[f.ContentHash] = append(oldHashToPaths[f.ContentHash], f.LocalPath)
	}

	var added []FileDiffEntry
	var removed []FileDiffEntry
	var modified []FileModification
	var moved []FileMove
	unchanged := 0
	processed := make(map[string]bool)
	var sizeAdded, sizeRemoved int64

	for _, nf := range newManifest.Files {
		path := nf.LocalPath

		if of, ok := oldFiles[path]; ok {
			if of.ContentHash == nf.ContentHash {
				unchanged++
			} else {
				delta := nf.Size - of.Size
				if delta > 0 {
					sizeAdded += delta
				} else {
					sizeRemoved += -delta
				}
				modified = append(modified, FileModification{
					Path:               path,
					SizeOld:            of.Size,
					SizeNew:            nf.Size,
					SizeDelta:          delta,
					HashOld:            of.ContentHash,
					HashNew:            nf.ContentHash,
					CompressionChanged: of.Compressed != nf.Compressed,
				})
			}
			processed[path] = true
			continue
		}

		if movedFrom, ok := findMoveSource(oldHashToPaths[nf.ContentHash], newFiles, processed); ok {
			moved = append(moved, FileMove{
				PathOld:     movedFrom,
				PathNew:     path,
				Size:        nf.Size,
				ContentHash: nf.ContentHash,
			})
			processed[movedFrom] = true
			processed[path] = true
			continue
		}

		sizeAdded += nf.Size
		added = append(added, FileDiffEntry{
			Path:        path,
			Size:        nf.Size,
			ContentHash: nf.ContentHash,
			Compressed:  nf.Compressed,
		})
		processed[path] = true
	}

	for _, of := range old.Files {
		path := of.LocalPath
		if processed[path] {
			continue
		}
		if _, stillExists := newFiles[path]; !stillExists {
			sizeRemoved += of.Size
			removed = append(removed, FileDiffEntry{
				Path:        path,
				Size:        of.Size,
				ContentHash: of.ContentHash,
				Compressed:  of.Compressed,
			})
		}
	}

	sort.Slice(added, func(i, j int) bool { return added[i].Path < added[j].Path })
	sort.Slice(removed, func(i, j int) bool { return removed[i].Path < removed[j].Path })
	sort.Slice(modified, func(i, j int) bool { return modified[i].Path < modified[j].Path })
	sort.Slice(moved, func(i, j int) bool { return moved[i].PathOld < moved[j].PathOld })

	return BackupDiff{
		BackupIDOld:   old.BackupID,
		BackupIDNew:   newManifest.BackupID,
		TimestampOld:  old.Timestamp,
		TimestampNew:  newManifest.Timestamp,
		FilesAdded:    added,
		FilesRemoved:  removed,
		FilesModified: modified,
		FilesMoved:    moved,
		Summary: DiffSummary{
			FilesAdded:     len(added),
			FilesRemoved:   len(removed),
			FilesModified:  len(modified),
			FilesMoved:     len(moved),
			FilesUnchanged: unchanged,
			SizeAdded:      sizeAdded,
			SizeRemoved:    sizeRemoved,
			SizeDelta:      sizeAdded - sizeRemoved,
		},
	}
}

// findMoveSource looks for an old path, among candidates sharing the
// new file's content hash, that hasn't already been matched and that
// new doesn't also claim under its own name.
func findMoveSource(candidates []string, newFiles map[string]FileEntry, processed map[string]bool) (string, bool) {
	for _, oldPath := range candidates {
		if processed[oldPath] {
			continue
		}
		if _, stillClaimed := newFiles[oldPath]; stillClaimed {
			continue
		}
		return oldPath, true
	}
	return "", false
}

// HasChanges reports whether any files were added, removed, modified,
// or moved.
func (d BackupDiff) HasChanges() bool {
	return len(d.FilesAdded) > 0 || len(d.FilesRemoved) > 0 || len(d.FilesModified) > 0 || len(d.FilesMoved) > 0
}

// TotalChanges counts every added, removed, modified, and moved file.
func (d BackupDiff) TotalChanges() int {
	return len(d.FilesAdded) + len(d.FilesRemoved) + len(d.FilesModified) + len(d.FilesMoved)
}
