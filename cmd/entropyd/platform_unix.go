//go:build darwin || linux

package main

import (
	"fmt"
	"os"
	"syscall"

	"entropyd/internal/sysutil"
)

// dropPrivileges drops root privileges on Unix systems, after every
// listening socket has been bound.
func dropPrivileges(uid, gid int) error {
	if err := syscall.Setgroups([]int{}); err != nil {
		return fmt.Errorf("setgroups: %w", err)
	}
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid: %w", err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid: %w", err)
	}
	if os.Getuid() == 0 || os.Geteuid() == 0 {
		return fmt.Errorf("failed to drop privileges")
	}
	return nil
}

// lockPoolMemory pins the pool buffer's pages so the daemon's entropy
// never gets paged to swap. Failure is non-fatal: it usually means the
// process lacks CAP_IPC_LOCK, and the caller logs a warning.
func lockPoolMemory(buf []byte) error {
	return sysutil.LockMemory(buf)
}
