//go:build windows

package main

import "errors"

// dropPrivileges on Windows is a no-op; token-based privilege reduction
// would need CreateRestrictedToken, not the POSIX uid/gid model.
func dropPrivileges(uid, gid int) error {
	return nil
}

// lockPoolMemory is unsupported on Windows without CGO access to
// VirtualLock; the caller logs the returned error as a warning.
func lockPoolMemory(buf []byte) error {
	return errors.New("memory locking not implemented on windows")
}
