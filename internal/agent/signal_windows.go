// ABOUTME: Windows fallback for worker process control.
// ABOUTME: No SIGSTOP/SIGCONT equivalents; pause/resume/kill ride the stdin command channel.

//go:build windows

package agent

import (
	"errors"
	"os"
)

const hasSignalControl = false

var errNoSignalControl = errors.New("process signal control unsupported on windows")

func suspendProcess(*os.Process) error   { return errNoSignalControl }
func resumeProcess(*os.Process) error    { return errNoSignalControl }
func terminateProcess(*os.Process) error { return errNoSignalControl }
