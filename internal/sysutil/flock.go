//go:build unix

// Package sysutil wraps the handful of OS-specific calls the daemon needs
// outside of networking: exclusive file locking for the control socket's
// stale-socket detector, memory locking for the entropy pool buffer, and
// the kernel entropy ioctls the feeder issues.
package sysutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// LockFile takes an exclusive, non-blocking flock on f, returning
// ErrLockHeld if another process already holds it.
func LockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return ErrLockHeld
	}
	return err
}

// UnlockFile releases a lock taken by LockFile.
func UnlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// ErrLockHeld is returned by LockFile when the lock is already held,
// indicating a stale or live control socket from another process.
var ErrLockHeld = lockHeldError{}

type lockHeldError struct{}

func (lockHeldError) Error() string { return "sysutil: lock file already held" }
