//go:build !unix

package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLocked reports that another daemon already holds the lock.
var ErrLocked = errors.New("another daemon is already running")

// Lock is a create-exclusive lock file for platforms without flock.
// Unlike the flock variant it can go stale if the process dies without
// releasing; Release or a manual delete clears it.
type Lock struct {
	path string
}

// AcquireLock takes the lock at path without blocking.
func AcquireLock(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w (lock file: %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	_, _ = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release drops the lock and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	l.path = ""
	return nil
}
