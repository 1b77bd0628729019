package reconcile

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// PathCache remembers directories already materialized in the store during
// a single import run. It is not safe for concurrent use.
type PathCache struct {
	dirs mapset.Set[string]
}

func NewPathCache() *PathCache {
	return &PathCache{dirs: mapset.NewThreadUnsafeSet[string]()}
}

// Add records path and reports whether it was not present before.
func (c *PathCache) Add(path string) bool {
	return c.dirs.Add(path)
}

func (c *PathCache) Len() int {
	return c.dirs.Cardinality()
}
