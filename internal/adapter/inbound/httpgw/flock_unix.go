//go:build !windows

package httpgw

import "golang.org/x/sys/unix"

// flockLock acquires an exclusive advisory file lock, guarding CA keypair
// generation against a race between two proxy processes starting at once.
func flockLock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX)
}

// flockUnlock releases the file lock acquired by flockLock.
func flockUnlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
