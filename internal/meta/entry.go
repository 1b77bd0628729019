// Package meta holds the path metadata model shared by the remote tree
// source, the metadata store and the reconciliation engine.
package meta

import "time"

// Kind distinguishes files from directories.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindDirectory
)

// Tag returns the single-letter tag used in diff reports.
func (k Kind) Tag() string {
	if k == KindDirectory {
		return "D"
	}
	return "F"
}

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// PathEntry is a point-in-time snapshot of one path on either side.
// Size and ModTime are only meaningful for files.
type PathEntry struct {
	Path    string `json:"path" db:"path"`
	Kind    Kind   `json:"kind" db:"-"`
	Size    int64  `json:"size" db:"size"`
	ModTime int64  `json:"mtime" db:"mod_time"`
	Deleted bool   `json:"deleted,omitempty" db:"deleted"`
}

// NewFile returns a file entry with mtime in epoch millis.
func NewFile(path string, size, modTime int64) PathEntry {
	return PathEntry{Path: Clean(path), Kind: KindFile, Size: size, ModTime: modTime}
}

// NewDir returns a directory entry.
func NewDir(path string) PathEntry {
	return PathEntry{Path: Clean(path), Kind: KindDirectory}
}

func (e PathEntry) IsDir() bool {
	return e.Kind == KindDirectory
}

func (e PathEntry) IsFile() bool {
	return e.Kind == KindFile
}

// Live reports whether e is present and not a tombstone.
func (e *PathEntry) Live() bool {
	return e != nil && !e.Deleted
}

// ModTimeMillis converts t to the epoch millis representation used by entries.
func ModTimeMillis(t time.Time) int64 {
	return t.UnixMilli()
}
