package metastore

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
)

// fileLock is an advisory lock next to a SQLite database file.
type fileLock struct {
	flock *flock.Flock
}

func acquireLock(path string) (*fileLock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
	}
	return &fileLock{flock: fl}, nil
}

// release is safe to call on a nil lock.
func (l *fileLock) release() {
	if l == nil || l.flock == nil {
		return
	}
	if err := l.flock.Unlock(); err != nil {
		slog.Warn("metastore unlock", "path", l.flock.Path(), "error", err)
	}
	os.Remove(l.flock.Path())
}
