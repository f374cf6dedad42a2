package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(path string, size int64, compressed bool) FileEntry {
	return FileEntry{
		LocalPath:   path,
		RemotePath:  "/backup/" + path + ".enc",
		Size:        size,
		ContentHash: "abc123",
		Compressed:  compressed,
		Encrypted:   true,
		Timestamp:   time.Now().UTC(),
	}
}

func TestBuildFileTree(t *testing.T) {
	files := []FileEntry{
		entry("/home/user/doc.txt", 100, false),
		entry("/home/user/image.png", 5000, true),
		entry("/home/user/projects/code.go", 2000, false),
	}

	tree := BuildFileTree(files)
	require.Len(t, tree, 2)

	var userDir *FileTreeNode
	for _, d := range tree {
		if d.Path == "/home/user" {
			userDir = d
		}
	}
	require.NotNil(t, userDir)
	assert.Len(t, userDir.Children, 2)
}

func TestFileTreeNodeTotalSize(t *testing.T) {
	dir := NewDirectoryNode("test", "/test")
	dir.AddChild(&FileTreeNode{Name: "file1.txt", Path: "/test/file1.txt", Size: 100})
	dir.AddChild(&FileTreeNode{Name: "file2.txt", Path: "/test/file2.txt", Size: 200})

	assert.Equal(t, int64(300), dir.TotalSize())
	assert.Equal(t, 2, dir.FileCount())
}

func TestBrowseableBackup(t *testing.T) {
	m := New("browse_test", time.Now().UTC(), []FileEntry{
		entry("/home/user/doc.txt", 100, false),
		entry("/home/user/image.png", 5000, true),
	}, []string{"/home/user"}, "v3")

	browseable := NewBrowseableBackup(&m)

	assert.Equal(t, 2, browseable.FileCount)
	assert.Equal(t, int64(5100), browseable.TotalSize)

	found := browseable.FindFile("/home/user/doc.txt")
	require.NotNil(t, found)
	assert.Equal(t, int64(100), found.Size)

	matches := browseable.FindFilesMatching(".txt")
	assert.Len(t, matches, 1)

	summary := browseable.Summary()
	assert.Equal(t, 1, summary.CompressedFiles)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "1.00 MB", FormatSize(1024*1024))
}
