package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidNamespace is returned for namespaces that cannot name a cache.
var ErrInvalidNamespace = errors.New("invalid namespace")

// Store persists image caches per namespace. Save replaces the stored cache
// wholesale.
type Store interface {
	Load(ctx context.Context, namespace string) (Cache, error)
	Save(ctx context.Context, namespace string, cache Cache) error
}

// ValidateNamespace rejects empty namespaces and ones that would escape a
// storage directory.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("%w: namespace cannot be empty", ErrInvalidNamespace)
	}
	if strings.ContainsAny(namespace, `/\`) || namespace == "." || namespace == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	return nil
}

// FileStore keeps one JSON object per namespace in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.dir, namespace+".json")
}

// Load implements Store. A namespace with no saved cache loads as empty.
func (s *FileStore) Load(ctx context.Context, namespace string) (Cache, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(namespace))
	if errors.Is(err, os.ErrNotExist) {
		return Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image cache: %w", err)
	}

	cache := Cache{}
	if len(data) == 0 {
		return cache, nil
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse image cache for %s: %w", namespace, err)
	}
	return cache, nil
}

// Save implements Store. The file is written to a temp file and renamed so a
// crash never leaves a partial cache behind.
func (s *FileStore) Save(ctx context.Context, namespace string, cache Cache) error {
	if err := ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if cache == nil {
		cache = Cache{}
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal image cache: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, namespace+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(namespace)); err != nil {
		return fmt.Errorf("failed to replace image cache: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]Cache
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{caches: make(map[string]Cache)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, namespace string) (Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caches[namespace].Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, namespace string, cache Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches[namespace] = cache.Clone()
	return nil
}
