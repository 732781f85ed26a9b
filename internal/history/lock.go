package history

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock is the advisory single-instance lock protecting the history file.
// Only one export run may hold it at a time.
type RunLock struct {
	flock *flock.Flock
}

// NewRunLock creates a lock file next to the history file.
func NewRunLock(path string) *RunLock {
	return &RunLock{flock: flock.New(path)}
}

// Acquire takes the lock without blocking. A held lock means another run is
// in progress.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire history lock: %w", err)
	}
	if !locked {
		return ErrHistoryLocked
	}
	return nil
}

// Release unlocks and removes the lock file.
func (l *RunLock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release history lock: %w", err)
	}
	return os.Remove(l.flock.Path())
}
