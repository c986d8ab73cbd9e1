// Package lockfile implements advisory mutual exclusion between
// harness invocations that share one filesystem.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrAlreadyLocked reported when another harness holds the lock.
var ErrAlreadyLocked = fmt.Errorf("lock already acquired")

// DefaultMaxAge contains default age after which a lock is
// considered stale.
const DefaultMaxAge = 2 * time.Hour

// Lock represents acquired filesystem lock.
type Lock struct {
	path string
}

// Path returns path of sentinel directory.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the sentinel directory.
//
// It is safe to call Release more than once and on a sentinel already
// removed by someone else.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Acquire creates sentinel directory "<name>.lock" in dir.
//
// On collision a sentinel older than maxAge is broken: its
// modification time is refreshed and the caller acquires the lock.
// A younger sentinel fails acquisition with ErrAlreadyLocked.
func Acquire(dir, name string, maxAge time.Duration) (*Lock, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	path := filepath.Join(dir, name+".lock")
	err := os.Mkdir(path, 0755)
	if err == nil {
		return &Lock{path: path}, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			// Holder released between Mkdir and Stat.
			if err := os.Mkdir(path, 0755); err != nil {
				return nil, err
			}
			return &Lock{path: path}, nil
		}
		return nil, statErr
	}
	if time.Since(info.ModTime()) < maxAge {
		return nil, ErrAlreadyLocked
	}
	// Stale sentinel: previous harness died without releasing.
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return nil, err
	}
	return &Lock{path: path}, nil
}

// AcquireBeside creates the sentinel next to the harness executable.
func AcquireBeside(name string, maxAge time.Duration) (*Lock, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return Acquire(filepath.Dir(executable), name, maxAge)
}
