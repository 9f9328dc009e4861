// ABOUTME: Cooperative pause/kill flags polled by the agent loop.
// ABOUTME: Safe for concurrent use; writers are control surfaces, reader is the agent.

package agent

import "sync/atomic"

// Flags is the cooperative control surface an agent polls once per tick
// and on every bottleneck wait attempt. Pause and kill are advisory until
// observed at one of those poll points.
type Flags struct {
	paused atomic.Bool
	killed atomic.Bool
}

// Pause requests the agent idle until Resume.
func (f *Flags) Pause() { f.paused.Store(true) }

// Resume clears a pause request.
func (f *Flags) Resume() { f.paused.Store(false) }

// Kill requests the agent stop at its next poll point.
func (f *Flags) Kill() { f.killed.Store(true) }

// Paused reports whether a pause request is pending.
func (f *Flags) Paused() bool { return f.paused.Load() }

// Killed reports whether a kill request is pending.
func (f *Flags) Killed() bool { return f.killed.Load() }
