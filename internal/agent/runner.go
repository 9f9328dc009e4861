// ABOUTME: Runner and Handle interfaces decoupling the coordinator from agent runtimes.
// ABOUTME: Which runtime hosts agents is a startup decision; callers only see Handles.

package agent

import (
	"errors"

	"github.com/raikyr/mazewarden/internal/maze"
)

// ErrRunnerClosed is returned by Spawn after the runner has been closed.
var ErrRunnerClosed = errors.New("agent runner closed")

// Handle is the control surface for one live agent. Pause, Resume, and
// Kill are advisory requests observed at the agent's poll points;
// ForceStop is the backstop for an agent that fails to honor a kill
// within the coordinator's grace period.
type Handle interface {
	ID() string
	Name() string
	Pause()
	Resume()
	Kill()
	ForceStop()
	// Done is closed once the agent's execution context has fully ended.
	Done() <-chan struct{}
}

// Runner hosts agents on some execution substrate.
type Runner interface {
	// Spawn starts one agent at the given cell and returns its handle.
	Spawn(name string, start maze.Point) (Handle, error)
	// Close stops every agent the runner still hosts and releases runner
	// resources.
	Close() error
}
