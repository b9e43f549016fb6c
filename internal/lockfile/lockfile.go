// Package lockfile keeps two servers from running over the same database.
// The lock is a file next to the database holding the owner's pid; a lock
// whose owner is gone is taken over.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned when a live process holds the lock
var ErrLocked = errors.New("database is in use")

// Lockfile is a pid-file lock
type Lockfile struct {
	path   string
	file   *os.File
	locked bool
}

// New creates a lock at path
func New(path string) *Lockfile {
	return &Lockfile{path: path}
}

// ForDatabase returns the lock guarding the database at dbPath
func ForDatabase(dbPath string) *Lockfile {
	return New(dbPath + ".lock")
}

// TryAcquire takes the lock, replacing it when its owner is no longer running
func (l *Lockfile) TryAcquire() error {
	if l.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	file, err := l.create()
	if os.IsExist(err) {
		owner, alive := l.owner()
		if alive {
			return fmt.Errorf("%w: held by pid %d (%s)", ErrLocked, owner, l.path)
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
		file, err = l.create()
	}
	if err != nil {
		return fmt.Errorf("failed to create lockfile: %w", err)
	}

	l.file = file
	l.locked = true
	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}
	return nil
}

func (l *Lockfile) create() (*os.File, error) {
	return os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}

// owner returns the pid recorded in the lockfile and whether it still runs.
// An unreadable or malformed file has no live owner.
func (l *Lockfile) owner() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if pid == os.Getpid() {
		return pid, true
	}
	return pid, isProcessRunning(pid)
}

// Release drops the lock. It is a no-op when the lock is not held.
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	var errs []error
	if l.file != nil {
		errs = append(errs, l.file.Close())
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove lockfile: %w", err))
	}
	return errors.Join(errs...)
}

// Locked reports whether the lock is held
func (l *Lockfile) Locked() bool { return l.locked }

// Path returns the lockfile path
func (l *Lockfile) Path() string { return l.path }
