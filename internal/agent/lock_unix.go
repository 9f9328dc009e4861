// ABOUTME: flock-based file locking for the cross-process admission token.
// ABOUTME: Advisory locks are dropped by the kernel when the holder exits.

//go:build unix

package agent

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
