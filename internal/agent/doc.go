// Package agent implements the maze workers and the runtimes that host
// them.
//
// # Overview
//
// An Agent walks the maze one tick at a time: it routes toward its
// current targets, contends for the bottleneck admission token, executes
// the fixed workload sequence at checkpoints, and leaves through the
// exit. Agents share no mutable state with each other or with the
// coordinator; everything they report travels through emitted events.
//
// # Runners
//
// Two Runner implementations host agents behind the same Handle control
// surface:
//
//   - ProcessRunner: each agent is a child process of the mazewarden
//     binary (the hidden `worker` subcommand). Events arrive as JSON
//     lines on the child's stdout; control uses OS signals where the
//     platform supports suspend/continue and cooperative stdin commands
//     elsewhere. The admission token is a file lock, so mutual exclusion
//     holds across processes and the lock dies with its holder.
//
//   - GoroutineRunner: each agent runs on its own OS thread inside the
//     host process (runtime.LockOSThread), with an in-memory token.
//     Selected via config, and the substrate the test suite drives.
//
// The coordinator only ever sees Handles; which runtime is active is a
// startup decision.
package agent
