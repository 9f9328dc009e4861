// ABOUTME: Coordinator: agent registry, event drain loop, log history, subscriber fan-out.
// ABOUTME: Single owner of all shared state; control requests and events are its only inputs.

package coord

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raikyr/mazewarden/internal/agent"
	"github.com/raikyr/mazewarden/internal/event"
	"github.com/raikyr/mazewarden/internal/maze"
)

const (
	// EventBuffer bounds the shared agent event channel. Producers drop
	// rather than block when it is full.
	EventBuffer = 10000
	// LogHistory bounds the recent-log ring shown to new subscribers.
	LogHistory = 500
	// MaxSpawn caps a single spawn request.
	MaxSpawn = 20
	// DefaultGrace is how long a killed agent may take to exit before it
	// is force-terminated.
	DefaultGrace = 3 * time.Second
	// reapWait bounds the drain loop's wait for an execution context to
	// end after its terminal event; a slower one is force-stopped.
	reapWait = 500 * time.Millisecond
)

// Recorder receives every drained event. Implementations must not block
// the drain loop.
type Recorder interface {
	Record(event.Event)
}

// RunnerFactory builds the agent runtime around the coordinator's event
// intake, so agents can emit before the coordinator even runs.
type RunnerFactory func(emit agent.Emitter) (agent.Runner, error)

// Options tunes a Coordinator.
type Options struct {
	Grace    time.Duration
	Seed     int64
	Logger   *slog.Logger
	Recorder Recorder
}

// Coordinator owns the registry of live agents and all state derived
// from their events. All mutation happens on its own operations; other
// components interact only through those operations and the subscriber
// stream.
type Coordinator struct {
	maze   *maze.Maze
	runner agent.Runner
	events chan event.Event
	grace  time.Duration
	logger *slog.Logger
	rec    Recorder
	bc     *broadcaster

	mu        sync.Mutex
	rng       *rand.Rand
	snapshots map[string]event.Event
	logLines  []string // newest first
	agents    map[string]agent.Handle
	dropped   uint64
}

// New builds a Coordinator and its agent runtime. The factory receives
// the coordinator's non-blocking event intake as the runtime's emitter.
func New(m *maze.Maze, opts Options, factory RunnerFactory) (*Coordinator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "coordinator")

	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &Coordinator{
		maze:      m,
		events:    make(chan event.Event, EventBuffer),
		grace:     grace,
		logger:    logger,
		rec:       opts.Recorder,
		bc:        newBroadcaster(logger),
		rng:       rand.New(rand.NewSource(seed)),
		snapshots: make(map[string]event.Event),
		agents:    make(map[string]agent.Handle),
	}

	runner, err := factory(c.Offer)
	if err != nil {
		return nil, fmt.Errorf("building agent runtime: %w", err)
	}
	c.runner = runner
	return c, nil
}

// Offer places an event on the shared channel without ever blocking the
// producer. A full channel drops the event; the coordinator's view may
// miss updates under sustained overload, which is accepted.
func (c *Coordinator) Offer(ev event.Event) {
	select {
	case c.events <- ev:
	default:
		c.mu.Lock()
		c.dropped++
		n := c.dropped
		c.mu.Unlock()
		if n%1000 == 1 {
			c.logger.Warn("event channel full, dropping", "dropped_total", n)
		}
	}
}

// Run drains the event channel until ctx is cancelled. It is the single
// consumer; events are handled strictly in arrival order.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("drain loop started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("drain loop stopped")
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// handle applies one event: snapshot, log, fan-out, reap on terminal.
func (c *Coordinator) handle(ev event.Event) {
	c.mu.Lock()
	c.snapshots[ev.AgentID] = ev

	if logged(ev.Kind) {
		line := formatEventLine(ev)
		c.pushLogLocked(line)
	}
	c.bc.publish(event.Agent(ev))

	var reap agent.Handle
	if ev.Kind.Terminal() {
		reap = c.agents[ev.AgentID]
		delete(c.agents, ev.AgentID)
		delete(c.snapshots, ev.AgentID)
	}
	c.mu.Unlock()

	if c.rec != nil {
		c.rec.Record(ev)
	}

	if ev.Kind.Terminal() && reap != nil {
		go reapHandle(reap)
	}
}

// reapHandle waits briefly for a terminated agent's execution context to
// end, then force-stops it. Either way the agent is already out of the
// registry.
func reapHandle(h agent.Handle) {
	select {
	case <-h.Done():
	case <-time.After(reapWait):
		h.ForceStop()
	}
}

// logged reports whether a kind produces a log line. Move events are the
// bulk of traffic and stay off the log.
func logged(k event.Kind) bool {
	return k == event.KindSpawn || k == event.KindState || k.Terminal()
}

func formatEventLine(ev event.Event) string {
	return fmt.Sprintf("%s | %s:%s :: %s | pos=(%d,%d) | %d/%d",
		time.Now().Format("15:04:05"), ev.Name, ev.AgentID, ev.Activity,
		ev.Position.Row, ev.Position.Col, ev.Done, ev.Total)
}

// pushLogLocked prepends a line to the bounded history and streams it.
// Caller holds c.mu.
func (c *Coordinator) pushLogLocked(line string) {
	c.logLines = append([]string{line}, c.logLines...)
	if len(c.logLines) > LogHistory {
		c.logLines = c.logLines[:LogHistory]
	}
	c.bc.publish(event.Log(line))
}

// logOp records a coordinator-side action in the same history.
func (c *Coordinator) logOp(format string, args ...any) {
	line := fmt.Sprintf("%s | coordinator :: %s",
		time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	c.mu.Lock()
	c.pushLogLocked(line)
	c.mu.Unlock()
}

// Spawn starts count new agents at distinct walkable cells, avoiding the
// exit, the bottleneck, and every checkpoint. Count is clamped to
// [1, MaxSpawn].
func (c *Coordinator) Spawn(count int) error {
	if count < 1 {
		count = 1
	}
	if count > MaxSpawn {
		count = MaxSpawn
	}

	avoid := map[maze.Point]bool{
		c.maze.Exit():           true,
		c.maze.BottleneckCell(): true,
	}
	for _, cp := range c.maze.Checkpoints() {
		avoid[cp] = true
	}
	var candidates []maze.Point
	for _, p := range c.maze.WalkableCells() {
		if !avoid[p] {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no free cell to spawn into")
	}

	c.mu.Lock()
	c.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	c.mu.Unlock()

	stamp := time.Now().Unix() % 10000
	for i := 0; i < count; i++ {
		pos := candidates[i%len(candidates)]
		name := fmt.Sprintf("wisp-%04d-%d", stamp, i+1)
		h, err := c.runner.Spawn(name, pos)
		if err != nil {
			return fmt.Errorf("spawning %s: %w", name, err)
		}
		c.mu.Lock()
		c.agents[h.ID()] = h
		c.mu.Unlock()
		c.logOp("spawned %s:%s at (%d,%d)", name, h.ID(), pos.Row, pos.Col)
	}
	return nil
}

// handleFor returns the live handle for id, or nil. Unknown ids are a
// deliberate no-op everywhere: the caller cannot distinguish "already
// gone" from "never existed".
func (c *Coordinator) handleFor(id string) agent.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agents[id]
}

func (c *Coordinator) handlesSnapshot() []agent.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agent.Handle, 0, len(c.agents))
	for _, h := range c.agents {
		out = append(out, h)
	}
	return out
}

// Pause suspends one agent.
func (c *Coordinator) Pause(id string) {
	if h := c.handleFor(id); h != nil {
		h.Pause()
		c.logOp("pause -> %s", id)
	}
}

// Resume continues one agent.
func (c *Coordinator) Resume(id string) {
	if h := c.handleFor(id); h != nil {
		h.Resume()
		c.logOp("resume -> %s", id)
	}
}

// Kill requests one agent stop, force-terminating it if it has not
// exited within the grace period.
func (c *Coordinator) Kill(id string) {
	if h := c.handleFor(id); h != nil {
		c.killWithGrace(h)
		c.logOp("kill -> %s", id)
	}
}

// PauseAll suspends every registered agent.
func (c *Coordinator) PauseAll() {
	for _, h := range c.handlesSnapshot() {
		h.Pause()
	}
	c.logOp("pause -> all")
}

// ResumeAll continues every registered agent.
func (c *Coordinator) ResumeAll() {
	for _, h := range c.handlesSnapshot() {
		h.Resume()
	}
	c.logOp("resume -> all")
}

// KillAll stops every registered agent, each with the grace backstop.
func (c *Coordinator) KillAll() {
	for _, h := range c.handlesSnapshot() {
		c.killWithGrace(h)
	}
	c.logOp("kill -> all")
}

func (c *Coordinator) killWithGrace(h agent.Handle) {
	h.Kill()
	go func() {
		select {
		case <-h.Done():
		case <-time.After(c.grace):
			c.logger.Warn("kill grace expired, forcing", "agent", h.ID())
			h.ForceStop()
		}
	}()
}

// AgentStates returns the last-known state of every live agent, ordered
// by agent ID for stable output.
func (c *Coordinator) AgentStates() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentStatesLocked()
}

func (c *Coordinator) agentStatesLocked() []event.Event {
	out := make([]event.Event, 0, len(c.snapshots))
	for _, ev := range c.snapshots {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// RecentLogs returns the bounded log history, newest first.
func (c *Coordinator) RecentLogs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logLines))
	copy(out, c.logLines)
	return out
}

// LiveAgents reports how many agents are currently registered.
func (c *Coordinator) LiveAgents() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.agents)
}

// Subscribe attaches a new observer. Its queue is seeded, in order, with
// the hello frame (maze geometry), a snapshot of every live agent, and
// the recent log history; live frames follow until ctx ends or the
// subscriber is explicitly removed via the returned id.
func (c *Coordinator) Subscribe(ctx context.Context) (<-chan event.Frame, string) {
	id := uuid.NewString()
	ch := make(chan event.Frame, SubscriberBuffer)

	c.mu.Lock()
	ch <- event.Hello(c.maze)
	ch <- event.Snapshot(c.agentStatesLocked())
	ch <- event.Logs(append([]string(nil), c.logLines...))
	c.bc.add(id, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.bc.remove(id)
	}()
	return ch, id
}

// Unsubscribe detaches an observer and closes its queue.
func (c *Coordinator) Unsubscribe(id string) {
	c.bc.remove(id)
}

// Shutdown kills every agent, closes the runtime, and disconnects all
// subscribers. The drain loop stops separately when its context ends.
func (c *Coordinator) Shutdown() {
	c.KillAll()
	if err := c.runner.Close(); err != nil {
		c.logger.Warn("closing runner", "error", err)
	}
	c.bc.close()
}
