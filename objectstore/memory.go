package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	bytes []byte
	item  StorageItem
}

// MemoryProvider is an in-memory Provider for tests and local
// experimentation. It is safe for concurrent use.
type MemoryProvider struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryProvider returns an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string]memoryObject)}
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (m *MemoryProvider) Upload(ctx context.Context, logicalPath string, data []byte, options UploadOptions) (StorageItem, error) {
	if err := ctx.Err(); err != nil {
		return StorageItem{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if options.FailIfExists {
		if _, exists := m.objects[logicalPath]; exists {
			return StorageItem{}, ErrAlreadyExists
		}
	}

	body := append([]byte(nil), data...)
	item := StorageItem{
		LogicalPath: logicalPath,
		Size:        int64(len(body)),
		ContentHash: hashOf(body),
		ModTime:     time.Now().UTC(),
		Metadata:    options.Metadata,
	}
	m.objects[logicalPath] = memoryObject{bytes: body, item: item}
	return item, nil
}

func (m *MemoryProvider) Download(ctx context.Context, logicalPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[logicalPath]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.bytes...), nil
}

func (m *MemoryProvider) Delete(ctx context.Context, logicalPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, logicalPath)
	return nil
}

func (m *MemoryProvider) List(ctx context.Context, prefix string, recursive bool) ([]StorageItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var items []StorageItem
	for path, obj := range m.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if recursive {
			items = append(items, obj.item)
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			child := prefix + rest[:idx+1]
			if !seen[child] {
				seen[child] = true
				items = append(items, StorageItem{LogicalPath: child})
			}
			continue
		}
		items = append(items, obj.item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].LogicalPath < items[j].LogicalPath })
	return items, nil
}

func (m *MemoryProvider) Head(ctx context.Context, logicalPath string) (StorageItem, error) {
	if err := ctx.Err(); err != nil {
		return StorageItem{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[logicalPath]
	if !ok {
		return StorageItem{}, ErrNotFound
	}
	return obj.item, nil
}

func (m *MemoryProvider) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[src]
	if !ok {
		return ErrNotFound
	}
	dstItem := obj.item
	dstItem.LogicalPath = dst
	dstItem.ModTime = time.Now().UTC()
	m.objects[dst] = memoryObject{bytes: append([]byte(nil), obj.bytes...), item: dstItem}
	return nil
}
