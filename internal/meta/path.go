package meta

import (
	"path"
	"strings"
)

// Root is the namespace root. It exists implicitly on every side.
const Root = "/"

// Clean normalizes p into an absolute slash path without a trailing slash.
func Clean(p string) string {
	if p == "" {
		return Root
	}
	return path.Clean("/" + strings.TrimLeft(p, "/"))
}

func IsRoot(p string) bool {
	return Clean(p) == Root
}

// Parent returns the parent of p. The root has no parent.
func Parent(p string) (string, bool) {
	p = Clean(p)
	if p == Root {
		return "", false
	}
	return path.Dir(p), true
}

// Join appends name to dir.
func Join(dir, name string) string {
	return Clean(path.Join(dir, name))
}

// ToKey converts an entry path into an object key without the leading slash.
// The root maps to the empty key.
func ToKey(p string) string {
	return strings.TrimPrefix(Clean(p), "/")
}

// FromKey converts an object key (with or without a trailing slash) into an
// entry path.
func FromKey(key string) string {
	return Clean(strings.TrimSuffix(key, "/"))
}

// IsAncestor reports whether dir is a strict ancestor of p.
func IsAncestor(dir, p string) bool {
	dir, p = Clean(dir), Clean(p)
	if dir == p {
		return false
	}
	if dir == Root {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}
