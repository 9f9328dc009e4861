// ABOUTME: LockFileEx-based file locking for the cross-process admission token.
// ABOUTME: Windows counterpart of lock_unix.go; locks die with the holding process.

//go:build windows

package agent

import (
	"os"

	"golang.org/x/sys/windows"
)

func lockFile(f *os.File) error {
	ov := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ov)
}

func unlockFile(f *os.File) error {
	ov := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ov)
}
