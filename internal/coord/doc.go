// Package coord owns all shared simulation state.
//
// # Overview
//
// The Coordinator is the single consumer of the agent event channel. Its
// drain loop updates the last-known snapshot per agent, maintains the
// bounded log history, fans every event out to subscriber queues, and
// reaps agents whose terminal event has been observed. Control
// operations (spawn, pause, resume, kill, and their -all variants) enter
// here and are forwarded to agent handles; nothing else in the system
// holds a reference to the registry, so there is no shared mutable state
// to lock outside this package.
//
// Producers never block: the event channel is bounded and offers are
// dropped when it is full, as is delivery to any subscriber whose own
// queue is full. Both losses are accepted by design; the stream is
// best-effort, at-most-once per subscriber.
package coord
