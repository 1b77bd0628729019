// Package reconcile compares a remote tree against the metadata store and
// loads remote state into the store.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/metrics"
	"github.com/openmined/metaguard/internal/remote"
)

// Engine runs diff, import and prune against one remote source and one
// metadata store. Operations are sequential; an Engine is not meant to be
// shared between goroutines.
type Engine struct {
	remote  remote.Source
	store   metastore.Store
	exclude []string
}

type Option func(*Engine)

// WithExclude skips paths matching any of the glob patterns, together with
// everything below them. Patterns are matched against the path without its
// leading slash, e.g. "tmp/**" or "**/*.crc".
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// ValidatePatterns checks exclude patterns up front.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: bad exclude pattern %q", meta.ErrInvalidArgument, p)
		}
	}
	return nil
}

func New(src remote.Source, store metastore.Store, opts ...Option) *Engine {
	e := &Engine{remote: src, store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// excluded reports whether path or one of its ancestors matches an exclude
// pattern.
func (e *Engine) excluded(path string) bool {
	if len(e.exclude) == 0 {
		return false
	}
	for p, ok := meta.Clean(path), true; ok && !meta.IsRoot(p); p, ok = meta.Parent(p) {
		rel := strings.TrimPrefix(p, "/")
		for _, pattern := range e.exclude {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return true
			}
		}
	}
	return false
}

// Prune removes store entries older than cutoff.
func (e *Engine) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := e.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	metrics.RecordPruned(n)
	slog.Info("prune", "cutoff", cutoff.UTC().Format(time.RFC3339), "removed", n)
	return n, nil
}
