package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Sentinel errors returned by transport operations.
var (
	// ErrLockTimeout indicates a lock could not be acquired within the
	// configured timeout. Callers should treat this as retryable, never
	// as permission to proceed without the lock.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrAlreadyExists indicates a write-once file already exists.
	ErrAlreadyExists = errors.New("file already exists")
)

// LockTimeoutError reports a failed acquisition of a named lock. It matches
// ErrLockTimeout under errors.Is.
type LockTimeoutError struct {
	Name    string
	Timeout time.Duration
}

// Error returns the formatted error message.
func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock %q: acquisition timed out after %s", e.Name, e.Timeout)
}

// Is reports whether this error matches the target error.
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

// Retry/backoff bounds for lock acquisition.
const (
	lockBackoffInitial = 2 * time.Millisecond
	lockBackoffMax     = 50 * time.Millisecond
)

// Lock is a named, exclusive, advisory cross-process lock backed by flock(2)
// on a file under the team's lock directory. A Lock value is not safe for
// concurrent use by multiple goroutines; each acquire site should create its
// own.
type Lock struct {
	name string
	path string
	file *os.File
}

// NewLock creates a Lock named name whose lock file lives in dir.
// The file is created on first acquisition.
func NewLock(dir, name string) *Lock {
	return &Lock{
		name: name,
		path: filepath.Join(dir, name+".lock"),
	}
}

// TryAcquire attempts to take the lock without blocking. Returns true if the
// lock was acquired, false if another process holds it.
func (l *Lock) TryAcquire() (bool, error) {
	if err := EnsureDir(filepath.Dir(l.path)); err != nil {
		return false, err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("transport: open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("transport: flock %s: %w", l.path, err)
	}

	l.file = f
	return true, nil
}

// Acquire takes the lock, retrying with exponential backoff until timeout
// elapses. On timeout it returns a *LockTimeoutError rather than silently
// proceeding.
func (l *Lock) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	backoff := lockBackoffInitial

	for {
		ok, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &LockTimeoutError{Name: l.name, Timeout: timeout}
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > lockBackoffMax {
			backoff = lockBackoffMax
		}
	}
}

// Release unlocks and closes the lock file. Safe to call when not held.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		l.file = nil
		return fmt.Errorf("transport: funlock %s: %w", l.path, err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// WithLock acquires the named lock in dir, runs fn, and releases the lock.
// fn's error is returned after the release.
func WithLock(dir, name string, timeout time.Duration, fn func() error) error {
	l := NewLock(dir, name)
	if err := l.Acquire(timeout); err != nil {
		return err
	}
	defer func() { _ = l.Release() }()
	return fn()
}
