package manifest

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// FileTreeNode is one node in the hierarchical view of a backup built
// by BuildFileTree, grouping FileEntry records by parent directory for
// browsing.
type FileTreeNode struct {
	Name        string
	Path        string
	IsDirectory bool
	Size        int64
	Hash        string
	Compressed  bool
	Timestamp   time.Time
	Children    []*FileTreeNode
}

// NewFileNode builds a leaf node from a FileEntry.
func NewFileNode(entry FileEntry) *FileTreeNode {
	return &FileTreeNode{
		Name:        path.Base(entry.LocalPath),
		Path:        entry.LocalPath,
		IsDirectory: false,
		Size:        entry.Size,
		Hash:        entry.ContentHash,
		Compressed:  entry.Compressed,
		Timestamp:   entry.Timestamp,
	}
}

// NewDirectoryNode builds an empty directory node.
func NewDirectoryNode(name, dirPath string) *FileTreeNode {
	return &FileTreeNode{
		Name:        name,
		Path:        dirPath,
		IsDirectory: true,
		Timestamp:   time.Now().UTC(),
	}
}

// AddChild appends child to a directory node. It's a no-op on a file
// node.
func (n *FileTreeNode) AddChild(child *FileTreeNode) {
	if n.IsDirectory {
		n.Children = append(n.Children, child)
	}
}

// TotalSize recursively sums the size of every file under n.
func (n *FileTreeNode) TotalSize() int64 {
	if !n.IsDirectory {
		return n.Size
	}
	var total int64
	for _, c := range n.Children {
		total += c.TotalSize()
	}
	return total
}

// FileCount recursively counts files under n.
func (n *FileTreeNode) FileCount() int {
	if !n.IsDirectory {
		return 1
	}
	var count int
	for _, c := range n.Children {
		count += c.FileCount()
	}
	return count
}

// BuildFileTree groups files by parent directory and returns one
// directory node per distinct parent, each holding its files as
// children, sorted by path.
func BuildFileTree(files []FileEntry) []*FileTreeNode {
	dirOrder := make([]string, 0)
	dirEntries := make(map[string][]FileEntry)

	for _, entry := range files {
		parent := path.Dir(entry.LocalPath)
		if parent == "" {
			parent = "/"
		}
		if _, seen := dirEntries[parent]; !seen {
			dirOrder = append(dirOrder, parent)
		}
		dirEntries[parent] = append(dirEntries[parent], entry)
	}

	sort.Strings(dirOrder)

	nodes := make([]*FileTreeNode, 0, len(dirOrder))
	for _, dirPath := range dirOrder {
		dirName := path.Base(dirPath)
		dirNode := NewDirectoryNode(dirName, dirPath)

		for _, entry := range dirEntries[dirPath] {
			dirNode.AddChild(NewFileNode(entry))
		}
		sort.Slice(dirNode.Children, func(i, j int) bool {
			return dirNode.Children[i].Name < dirNode.Children[j].Name
		})

		nodes = append(nodes, dirNode)
	}

	return nodes
}

// BrowseableBackup is the decrypted, browsable view of a manifest
// presented to an authorized user.
type BrowseableBackup struct {
	BackupID          string
	Timestamp         time.Time
	FileTree          []*FileTreeNode
	FileCount         int
	TotalSize         int64
	SourcePaths       []string
	EncryptionVersion string
}

// NewBrowseableBackup builds a BrowseableBackup from a decrypted
// manifest.
func NewBrowseableBackup(m *BackupManifest) *BrowseableBackup {
	return &BrowseableBackup{
		BackupID:          m.BackupID,
		Timestamp:         m.Timestamp,
		FileTree:          BuildFileTree(m.Files),
		FileCount:         m.FileCount,
		TotalSize:         m.TotalSize,
		SourcePaths:       m.SourcePaths,
		EncryptionVersion: m.EncryptionVersion,
	}
}

// FindFile returns the file node at the given local path, if any.
func (b *BrowseableBackup) FindFile(filePath string) *FileTreeNode {
	for _, dir := range b.FileTree {
		for _, file := range dir.Children {
			if file.Path == filePath {
				return file
			}
		}
	}
	return nil
}

// FindFilesMatching returns every file whose name or path contains
// pattern, case-insensitively.
func (b *BrowseableBackup) FindFilesMatching(pattern string) []*FileTreeNode {
	patternLower := strings.ToLower(pattern)
	var matches []*FileTreeNode
	for _, dir := range b.FileTree {
		for _, file := range dir.Children {
			if strings.Contains(strings.ToLower(file.Name), patternLower) ||
				strings.Contains(strings.ToLower(file.Path), patternLower) {
				matches = append(matches, file)
			}
		}
	}
	return matches
}

// FilesInDirectory returns the files directly under dirPath.
func (b *BrowseableBackup) FilesInDirectory(dirPath string) []*FileTreeNode {
	for _, dir := range b.FileTree {
		if dir.Path == dirPath {
			return dir.Children
		}
	}
	return nil
}

// Directories returns every top-level directory node.
func (b *BrowseableBackup) Directories() []*FileTreeNode {
	return b.FileTree
}

// Summary computes aggregate statistics over the backup.
func (b *BrowseableBackup) Summary() BackupSummary {
	var compressedCount int
	var compressedSize, uncompressedSize int64

	for _, dir := range b.FileTree {
		for _, file := range dir.Children {
			if file.Compressed {
				compressedCount++
				compressedSize += file.Size
			} else {
				uncompressedSize += file.Size
			}
		}
	}

	return BackupSummary{
		BackupID:         b.BackupID,
		Timestamp:        b.Timestamp,
		TotalFiles:       b.FileCount,
		TotalDirectories: len(b.FileTree),
		TotalSize:        b.TotalSize,
		CompressedFiles:  compressedCount,
		CompressedSize:   compressedSize,
		UncompressedSize: uncompressedSize,
	}
}

// BackupSummary is a compact set of aggregate statistics over a
// browseable backup.
type BackupSummary struct {
	BackupID         string
	Timestamp        time.Time
	TotalFiles       int
	TotalDirectories int
	TotalSize        int64
	CompressedFiles  int
	CompressedSize   int64
	UncompressedSize int64
}

const (
	sizeKB = 1024
	sizeMB = sizeKB * 1024
	sizeGB = sizeMB * 1024
)

// FormatSize renders bytes in a human-readable unit.
func FormatSize(bytes int64) string {
	switch {
	case bytes >= sizeGB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
