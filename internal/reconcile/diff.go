package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metrics"
)

// pair holds both views of one path. A nil side is absent there.
type pair struct {
	remote *meta.PathEntry
	store  *meta.PathEntry
}

func (p pair) path() string {
	if p.remote != nil {
		return p.remote.Path
	}
	return p.store.Path
}

func (p pair) isDir() bool {
	return (p.remote != nil && p.remote.IsDir()) || (p.store != nil && p.store.IsDir())
}

// differ reports whether the two sides disagree. Directories are compared on
// kind only.
func differ(remote, store *meta.PathEntry) bool {
	if remote == nil || store == nil {
		return remote != store
	}
	if remote.Kind != store.Kind {
		return true
	}
	if remote.IsDir() {
		return false
	}
	return remote.Size != store.Size || remote.ModTime != store.ModTime
}

// Diff walks the tree under root in pre-order and sends a record to sink for
// every side of every path on which the remote and the store disagree.
// Siblings are visited in lexicographic order. The sink is flushed as each
// directory is expanded and once more on return, so records written before a
// failure stay visible.
func (e *Engine) Diff(ctx context.Context, root string, sink Sink) (err error) {
	defer func() {
		if ferr := sink.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush diff output: %w", ferr)
		}
	}()

	root = meta.Clean(root)
	start, err := e.resolve(ctx, root)
	if err != nil {
		return err
	}
	if start.remote == nil && start.store == nil {
		return fmt.Errorf("diff %s: %w", root, meta.ErrNotFound)
	}
	if e.excluded(root) {
		slog.Debug("diff root excluded", "root", root)
		return nil
	}

	var emitted int
	stack := []pair{start}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.remote != nil && p.store != nil && p.remote.Path != p.store.Path {
			return fmt.Errorf("%w: comparing %s with %s", meta.ErrInvalidArgument, p.remote.Path, p.store.Path)
		}
		metrics.RecordCompared()

		if !meta.IsRoot(p.path()) && differ(p.remote, p.store) {
			for _, r := range records(p) {
				if err := sink.Emit(r); err != nil {
					return fmt.Errorf("write diff output: %w", err)
				}
				metrics.RecordDiff(r.Source.Tag())
				emitted++
			}
		}

		if !p.isDir() {
			continue
		}

		children, err := e.children(ctx, p)
		if err != nil {
			return err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}

		if err := sink.Flush(); err != nil {
			return fmt.Errorf("flush diff output: %w", err)
		}
	}

	slog.Debug("diff", "root", root, "records", emitted)
	return nil
}

func records(p pair) []DiffRecord {
	var out []DiffRecord
	if p.remote != nil {
		out = append(out, DiffRecord{Source: SourceRemote, Entry: *p.remote})
	}
	if p.store != nil {
		out = append(out, DiffRecord{Source: SourceStore, Entry: *p.store})
	}
	return out
}

// resolve fetches path from both sides. Tombstones count as absent and the
// namespace root is present on both sides.
func (e *Engine) resolve(ctx context.Context, path string) (pair, error) {
	if meta.IsRoot(path) {
		r, s := meta.NewDir(meta.Root), meta.NewDir(meta.Root)
		return pair{remote: &r, store: &s}, nil
	}

	var p pair
	entry, err := e.remote.Stat(ctx, path)
	switch {
	case err == nil:
		p.remote = &entry
	case errors.Is(err, meta.ErrNotFound):
	default:
		return pair{}, err
	}

	stored, err := e.store.Get(ctx, path)
	if err != nil {
		return pair{}, err
	}
	if stored.Live() {
		p.store = stored
	}
	return p, nil
}

// children lists one level below p on both sides and pairs the results by
// path, sorted.
func (e *Engine) children(ctx context.Context, p pair) ([]pair, error) {
	byPath := make(map[string]*pair)
	get := func(path string) *pair {
		c, ok := byPath[path]
		if !ok {
			c = &pair{}
			byPath[path] = c
		}
		return c
	}

	if p.remote != nil && p.remote.IsDir() {
		entries, err := e.remote.ListChildren(ctx, p.remote.Path)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			get(entries[i].Path).remote = &entries[i]
		}
	}

	if p.store != nil && p.store.IsDir() {
		entries, err := e.store.ListChildren(ctx, p.store.Path)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if entries[i].Deleted {
				continue
			}
			get(entries[i].Path).store = &entries[i]
		}
	}

	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		if e.excluded(path) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	out := make([]pair, 0, len(paths))
	for _, path := range paths {
		out = append(out, *byPath[path])
	}
	return out, nil
}
