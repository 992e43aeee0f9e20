//go:build unix

package sysutil

import "golang.org/x/sys/unix"

// LockMemory pins buf's pages to prevent the pool buffer from being
// swapped out, where the caller has CAP_IPC_LOCK or an appropriate
// RLIMIT_MEMLOCK. Failure is non-fatal; callers should log and continue
// without the guarantee.
func LockMemory(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Mlock(buf)
}

// UnlockMemory releases a lock taken by LockMemory.
func UnlockMemory(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Munlock(buf)
}
