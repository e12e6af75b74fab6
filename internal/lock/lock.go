package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another tabrefresh process holds the lock.
var ErrHeld = errors.New("another tabrefresh instance is running")

// Lock is an exclusive lock on the data directory.
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "tabrefresh.lock")
}

// Acquire takes the data directory lock without blocking.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	fl := flock.New(Path(dataDir))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrHeld
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
