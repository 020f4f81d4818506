package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// FileLock is a file-based lock guarding history database updates.
type FileLock struct {
	lock *flock.Flock
	path string
}

// NewFileLock creates a new lock for the given target path. The lock file
// lives next to the target.
func NewFileLock(target string) (*FileLock, error) {
	absPath, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for %s: %w", target, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create directory for %s: %w", absPath, err)
	}
	lockPath := absPath + lockFileSuffix
	return &FileLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the lock, waiting if necessary.
// It will print a message if it has to wait.
func (l *FileLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another stoneage process is writing %s, waiting for it to finish...\n", l.path)
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves the history database path.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "stoneage", "stoneage.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
