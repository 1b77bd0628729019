package metastore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metrics"
)

// nowFunc stamps tombstones. Tests replace it.
var nowFunc = time.Now

func nowMillis() int64 {
	return meta.ModTimeMillis(nowFunc())
}

// MemoryStore is the process-local store behind the local:// scheme.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]meta.PathEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]meta.PathEntry),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*meta.PathEntry, error) {
	defer metrics.ObserveStoreOp("get", time.Now(), nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[meta.Clean(path)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) ListChildren(ctx context.Context, path string) ([]meta.PathEntry, error) {
	defer metrics.ObserveStoreOp("list_children", time.Now(), nil)

	path = meta.Clean(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !meta.IsRoot(path) {
		dir, ok := s.entries[path]
		if !ok || !dir.IsDir() || dir.Deleted {
			return nil, nil
		}
	}

	children := []meta.PathEntry{}
	for p, e := range s.entries {
		if parent, ok := meta.Parent(p); ok && parent == path {
			children = append(children, e)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Path < children[j].Path
	})
	return children, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry meta.PathEntry) error {
	defer metrics.ObserveStoreOp("put", time.Now(), nil)

	entry.Path = meta.Clean(entry.Path)
	if meta.IsRoot(entry.Path) {
		return fmt.Errorf("%w: cannot put the namespace root", meta.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Path] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	path = meta.Clean(path)
	if meta.IsRoot(path) {
		return fmt.Errorf("%w: cannot delete the namespace root", meta.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tombstone := meta.PathEntry{Path: path, Kind: meta.KindFile, Deleted: true, ModTime: nowMillis()}
	if existing, ok := s.entries[path]; ok {
		tombstone.Kind = existing.Kind
	}
	s.entries[path] = tombstone
	return nil
}

func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	defer metrics.ObserveStoreOp("prune", time.Now(), nil)

	limit := meta.ModTimeMillis(cutoff)

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for p, e := range s.entries {
		if (e.IsFile() || e.Deleted) && e.ModTime < limit {
			delete(s.entries, p)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]meta.PathEntry)
	return nil
}

func (s *MemoryStore) Diagnostics(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files, tombstones int
	var bytes uint64
	for _, e := range s.entries {
		switch {
		case e.Deleted:
			tombstones++
		case e.IsFile():
			files++
			bytes += uint64(e.Size)
		}
	}

	return map[string]string{
		"name":       "local",
		"location":   "memory",
		"entries":    strconv.Itoa(len(s.entries)),
		"files":      strconv.Itoa(files),
		"tombstones": strconv.Itoa(tombstones),
		"size":       humanize.Bytes(bytes),
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
