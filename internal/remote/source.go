// Package remote exposes the authoritative object namespace that the
// metadata store mirrors.
package remote

import (
	"context"

	"github.com/openmined/metaguard/internal/meta"
)

// Source is a read-only view over a namespace of files and directories.
type Source interface {
	// Stat returns the entry at path, or an error wrapping meta.ErrNotFound.
	Stat(ctx context.Context, path string) (meta.PathEntry, error)

	// ListChildren returns the direct children of the directory at path.
	ListChildren(ctx context.Context, path string) ([]meta.PathEntry, error)

	// ListRecursive returns every file and every empty directory below path.
	ListRecursive(ctx context.Context, path string) ([]meta.PathEntry, error)
}
