package repository

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/iconidentify/cardvault/internal/domain"
)

const valueExt = ".json"

// FilesystemKeyValueStore keeps one JSON file per key under basePath.
type FilesystemKeyValueStore struct {
	basePath      string
	maxValueBytes int64
	mu            sync.RWMutex
}

// NewFilesystemKeyValueStore creates a store rooted at basePath. A positive
// maxValueBytes rejects larger values with domain.ErrQuotaExceeded.
func NewFilesystemKeyValueStore(basePath string, maxValueBytes int64) *FilesystemKeyValueStore {
	return &FilesystemKeyValueStore{
		basePath:      basePath,
		maxValueBytes: maxValueBytes,
	}
}

// BasePath returns the directory holding the value files.
func (s *FilesystemKeyValueStore) BasePath() string {
	return s.basePath
}

// pathFor maps a key to its file. Keys are escaped so they cannot leave basePath.
func (s *FilesystemKeyValueStore) pathFor(key string) string {
	return filepath.Join(s.basePath, url.PathEscape(key)+valueExt)
}

// keyFor is the inverse of pathFor for a bare file name.
func keyFor(name string) (string, bool) {
	if !strings.HasSuffix(name, valueExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, valueExt))
	if err != nil {
		return "", false
	}
	return key, true
}

// Get reads the value file for key.
func (s *FilesystemKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set writes the value atomically via a temp file.
func (s *FilesystemKeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if s.maxValueBytes > 0 && int64(len(value)) > s.maxValueBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", domain.ErrQuotaExceeded, key, len(value), s.maxValueBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	path := s.pathFor(key)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, value, 0644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Remove deletes the value file for key.
func (s *FilesystemKeyValueStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys lists keys that have a value file.
func (s *FilesystemKeyValueStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list storage directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFor(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (s *FilesystemKeyValueStore) Close() error {
	return nil
}
