package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// lockPollInterval is how often a contended section lock is retried.
const lockPollInterval = 10 * time.Millisecond

// FileLock is an acquired exclusive flock on a lock file.
type FileLock struct {
	file *os.File
}

// acquire takes an exclusive lock on path, polling with LOCK_NB until the
// timeout or ctx expires. A holder that crashed releases its flock on exit,
// so a timeout means a live holder is wedged.
func acquire(ctx context.Context, path string, timeout time.Duration) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &FileLock{file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, path, timeout)
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// Lock takes the same bounded exclusive lock that guards a section, for
// files that live beside the sections such as the audit ledger.
func Lock(ctx context.Context, path string, timeout time.Duration) (*FileLock, error) {
	return acquire(ctx, path, timeout)
}

// Release unlocks and closes the lock file.
func (l *FileLock) Release() error {
	return l.release()
}

// release unlocks and closes the lock file.
func (l *FileLock) release() error {
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
