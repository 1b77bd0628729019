package remote

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/openmined/metaguard/internal/meta"
)

// MemSource is an in-memory namespace. Directories are implied by the files
// below them, the same way an object store implies them from key prefixes.
type MemSource struct {
	mu      sync.RWMutex
	entries map[string]meta.PathEntry
}

func NewMemSource() *MemSource {
	return &MemSource{entries: make(map[string]meta.PathEntry)}
}

// PutFile adds a file and any missing ancestor directories.
func (m *MemSource) PutFile(path string, size, modTime int64) {
	m.put(meta.NewFile(path, size, modTime))
}

// PutDir adds a directory and any missing ancestor directories.
func (m *MemSource) PutDir(path string) {
	m.put(meta.NewDir(path))
}

// Remove deletes path and everything below it.
func (m *MemSource) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = meta.Clean(path)
	for p := range m.entries {
		if p == path || meta.IsAncestor(path, p) {
			delete(m.entries, p)
		}
	}
}

func (m *MemSource) put(e meta.PathEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if meta.IsRoot(e.Path) {
		return
	}
	m.entries[e.Path] = e
	for parent, ok := meta.Parent(e.Path); ok && !meta.IsRoot(parent); parent, ok = meta.Parent(parent) {
		if _, exists := m.entries[parent]; !exists {
			m.entries[parent] = meta.NewDir(parent)
		}
	}
}

func (m *MemSource) Stat(_ context.Context, path string) (meta.PathEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path = meta.Clean(path)
	if meta.IsRoot(path) {
		return meta.NewDir(meta.Root), nil
	}
	e, ok := m.entries[path]
	if !ok {
		return meta.PathEntry{}, fmt.Errorf("stat %s: %w", path, meta.ErrNotFound)
	}
	return e, nil
}

func (m *MemSource) ListChildren(_ context.Context, path string) ([]meta.PathEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path = meta.Clean(path)
	var children []meta.PathEntry
	for p, e := range m.entries {
		if parent, ok := meta.Parent(p); ok && parent == path {
			children = append(children, e)
		}
	}
	sortEntries(children)
	return children, nil
}

func (m *MemSource) ListRecursive(_ context.Context, path string) ([]meta.PathEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path = meta.Clean(path)
	nonEmpty := make(map[string]bool)
	for p := range m.entries {
		if parent, ok := meta.Parent(p); ok {
			nonEmpty[parent] = true
		}
	}

	var out []meta.PathEntry
	for p, e := range m.entries {
		if !meta.IsAncestor(path, p) {
			continue
		}
		if e.IsDir() && nonEmpty[p] {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []meta.PathEntry) {
	slices.SortFunc(entries, func(a, b meta.PathEntry) int {
		return strings.Compare(a.Path, b.Path)
	})
}

var _ Source = (*MemSource)(nil)
