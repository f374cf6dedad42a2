package objectstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalFSProvider is a Provider backed by a directory on the local
// filesystem, for single-host use ahead of a vendor object-storage
// SDK.
type LocalFSProvider struct {
	root string
}

// NewLocalFSProvider returns a LocalFSProvider rooted at root. The
// directory is created if it does not exist.
func NewLocalFSProvider(root string) (*LocalFSProvider, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &LocalFSProvider{root: root}, nil
}

func (l *LocalFSProvider) resolve(logicalPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(logicalPath))
}

func (l *LocalFSProvider) Upload(ctx context.Context, logicalPath string, data []byte, options UploadOptions) (StorageItem, error) {
	if err := ctx.Err(); err != nil {
		return StorageItem{}, err
	}

	full := l.resolve(logicalPath)

	if options.FailIfExists {
		if _, err := os.Stat(full); err == nil {
			return StorageItem{}, ErrAlreadyExists
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return StorageItem{}, err
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return StorageItem{}, err
	}
	if err := os.Rename(tmp, full); err != nil {
		return StorageItem{}, err
	}

	return l.statItem(logicalPath)
}

func (l *LocalFSProvider) Download(ctx context.Context, logicalPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.resolve(logicalPath))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (l *LocalFSProvider) Delete(ctx context.Context, logicalPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(l.resolve(logicalPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *LocalFSProvider) List(ctx context.Context, prefix string, recursive bool) ([]StorageItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := l.resolve(prefix)
	var items []StorageItem

	info, err := os.Stat(base)
	if os.IsNotExist(err) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		item, err := l.statItem(prefix)
		if err != nil {
			return nil, err
		}
		return []StorageItem{item}, nil
	}

	if recursive {
		err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasSuffix(path, ".tmp") {
				return nil
			}
			rel, err := filepath.Rel(l.root, path)
			if err != nil {
				return err
			}
			item, err := l.statItem(filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
		return items, err
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		logicalPath := strings.TrimSuffix(prefix, "/") + "/" + e.Name()
		if e.IsDir() {
			items = append(items, StorageItem{LogicalPath: logicalPath + "/"})
			continue
		}
		item, err := l.statItem(logicalPath)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (l *LocalFSProvider) Head(ctx context.Context, logicalPath string) (StorageItem, error) {
	if err := ctx.Err(); err != nil {
		return StorageItem{}, err
	}
	return l.statItem(logicalPath)
}

func (l *LocalFSProvider) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := l.Download(ctx, src)
	if err != nil {
		return err
	}
	_, err = l.Upload(ctx, dst, data, UploadOptions{})
	return err
}

func (l *LocalFSProvider) statItem(logicalPath string) (StorageItem, error) {
	full := l.resolve(logicalPath)
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return StorageItem{}, ErrNotFound
	}
	if err != nil {
		return StorageItem{}, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return StorageItem{}, err
	}

	return StorageItem{
		LogicalPath: logicalPath,
		Size:        info.Size(),
		ContentHash: hashOf(data),
		ModTime:     info.ModTime().UTC(),
	}, nil
}
