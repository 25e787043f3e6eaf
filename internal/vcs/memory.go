package vcs

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryHaveStore is a HaveStore kept in process memory. It is used when no
// database is configured.
type MemoryHaveStore struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMemoryHaveStore creates an empty in-memory have list
func NewMemoryHaveStore() *MemoryHaveStore {
	return &MemoryHaveStore{files: make(map[string]string)}
}

// GetHave returns the recorded blob hash for path
func (m *MemoryHaveStore) GetHave(_ context.Context, path string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.files[path]
	return hash, ok, nil
}

// SetHave records hash as the synced blob of path
func (m *MemoryHaveStore) SetHave(_ context.Context, path, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[path] = hash
	return nil
}

// ListHave returns recorded paths starting with prefix in path order
func (m *MemoryHaveStore) ListHave(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for path := range m.files {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
