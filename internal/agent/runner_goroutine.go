// ABOUTME: In-process agent runtime: one OS-thread-pinned goroutine per agent.
// ABOUTME: Shares an in-memory admission token; control via cooperative flags.

package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raikyr/mazewarden/internal/maze"
)

// GoroutineRunner hosts agents inside the coordinator's process. Each
// agent runs on its own goroutine pinned to an OS thread, so scheduling
// stays preemptive and parallel; agents still share nothing mutable
// except the admission token and the event emitter.
type GoroutineRunner struct {
	maze  *maze.Maze
	tick  time.Duration
	total int
	token Token
	emit  Emitter
	log   *slog.Logger

	mu      sync.Mutex
	handles map[string]*goroutineHandle
	closed  bool
}

// NewGoroutineRunner builds an in-process runner. total <= 0 uses the
// default workload count.
func NewGoroutineRunner(m *maze.Maze, tick time.Duration, total int, emit Emitter, log *slog.Logger) *GoroutineRunner {
	if log == nil {
		log = slog.Default()
	}
	return &GoroutineRunner{
		maze:    m,
		tick:    tick,
		total:   total,
		token:   NewChanToken(),
		emit:    emit,
		log:     log.With("component", "runner", "runtime", "goroutine"),
		handles: make(map[string]*goroutineHandle),
	}
}

// Spawn starts one agent goroutine at the given cell.
func (r *GoroutineRunner) Spawn(name string, start maze.Point) (Handle, error) {
	id := uuid.NewString()[:8]
	flags := &Flags{}
	ctx, cancel := context.WithCancel(context.Background())
	h := &goroutineHandle{
		id:     id,
		name:   name,
		flags:  flags,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ag := &Agent{
		ID:    id,
		Name:  name,
		Maze:  r.maze,
		Start: start,
		Tick:  r.tick,
		Total: r.total,
		Token: r.token,
		Flags: flags,
		Emit:  r.emit,
		Rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		Log:   r.log,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return nil, ErrRunnerClosed
	}
	r.handles[id] = h
	r.mu.Unlock()

	go func() {
		// Pin the agent to its own OS thread for its whole lifetime so
		// every agent is an independently scheduled unit of parallel
		// execution rather than a cooperatively multiplexed one.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(h.done)
		ag.Run(ctx)

		r.mu.Lock()
		delete(r.handles, id)
		r.mu.Unlock()
	}()

	r.log.Debug("agent spawned", "agent", id, "name", name, "start", start)
	return h, nil
}

// Close cancels every hosted agent and rejects further spawns. It does
// not wait for agents to finish; callers that need that wait on each
// handle's Done channel.
func (r *GoroutineRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, h := range r.handles {
		h.flags.Kill()
		h.cancel()
	}
	return nil
}

type goroutineHandle struct {
	id     string
	name   string
	flags  *Flags
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *goroutineHandle) ID() string   { return h.id }
func (h *goroutineHandle) Name() string { return h.name }
func (h *goroutineHandle) Pause()       { h.flags.Pause() }
func (h *goroutineHandle) Resume()      { h.flags.Resume() }
func (h *goroutineHandle) Kill()        { h.flags.Kill() }

// ForceStop cancels the agent's context. A goroutine cannot be torn down
// from outside, so cancellation is the strongest backstop this runtime
// has; the loop observes it at its next sleep or workload.
func (h *goroutineHandle) ForceStop()            { h.cancel() }
func (h *goroutineHandle) Done() <-chan struct{} { return h.done }
