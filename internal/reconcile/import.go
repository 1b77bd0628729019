package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metrics"
)

// Import copies the remote subtree at root into the store and returns the
// number of listed entries inserted. Missing ancestor directories are
// created along the way but not counted. Entries already written stay in the
// store when a later step fails.
func (e *Engine) Import(ctx context.Context, root string) (int64, error) {
	root = meta.Clean(root)

	entry, err := e.remote.Stat(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", root, err)
	}
	if e.excluded(root) {
		slog.Info("import root excluded", "root", root)
		return 0, nil
	}

	cache := NewPathCache()

	if entry.IsFile() {
		if err := e.importEntry(ctx, cache, entry); err != nil {
			return 0, err
		}
		return 1, nil
	}

	entries, err := e.remote.ListRecursive(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", root, err)
	}

	var count, skipped, bytes int64
	for _, child := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if e.excluded(child.Path) {
			skipped++
			continue
		}
		if err := e.importEntry(ctx, cache, child); err != nil {
			return count, err
		}
		count++
		bytes += child.Size
	}

	slog.Info("import", "root", root, "entries", count, "skipped", skipped, "dirs", cache.Len(), "size", humanize.Bytes(uint64(bytes)))
	return count, nil
}

func (e *Engine) importEntry(ctx context.Context, cache *PathCache, entry meta.PathEntry) error {
	if err := e.ensureAncestors(ctx, cache, entry.Path); err != nil {
		return err
	}
	if err := e.store.Put(ctx, entry); err != nil {
		return err
	}
	if entry.IsDir() {
		cache.Add(entry.Path)
	}
	metrics.RecordImported(entry.Kind.String())
	return nil
}

// ensureAncestors walks up from the parent of path until the namespace root
// or a directory this run already handled, then creates the missing ones
// top-down so no entry is written before its parent.
func (e *Engine) ensureAncestors(ctx context.Context, cache *PathCache, path string) error {
	var missing []string
	for dir, ok := meta.Parent(path); ok && !meta.IsRoot(dir); dir, ok = meta.Parent(dir) {
		if !cache.Add(dir) {
			break
		}

		existing, err := e.store.Get(ctx, dir)
		if err != nil {
			return err
		}
		if existing.Live() && existing.IsDir() {
			continue
		}
		missing = append(missing, dir)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := e.store.Put(ctx, meta.NewDir(missing[i])); err != nil {
			return err
		}
		metrics.RecordAncestorCreated()
	}
	return nil
}
