// ABOUTME: Direct OS suspend/continue/terminate for worker processes on unix.
// ABOUTME: Selected at build time; the windows build falls back to cooperative control.

//go:build unix

package agent

import (
	"os"

	"golang.org/x/sys/unix"
)

// hasSignalControl reports that this platform can stop and continue a
// worker process directly.
const hasSignalControl = true

func suspendProcess(p *os.Process) error   { return p.Signal(unix.SIGSTOP) }
func resumeProcess(p *os.Process) error    { return p.Signal(unix.SIGCONT) }
func terminateProcess(p *os.Process) error { return p.Signal(unix.SIGTERM) }
