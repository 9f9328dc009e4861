// ABOUTME: Per-tick agent loop: route, contend for the bottleneck, run workloads, exit.
// ABOUTME: Shared by the worker subprocess and the goroutine runtime.

package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/raikyr/mazewarden/internal/event"
	"github.com/raikyr/mazewarden/internal/maze"
	"github.com/raikyr/mazewarden/internal/route"
	"github.com/raikyr/mazewarden/internal/task"
)

const (
	// DefaultTick is the interval between movement decisions.
	DefaultTick = 170 * time.Millisecond
	// pauseInterval is how long a paused agent sleeps before re-polling.
	pauseInterval = 250 * time.Millisecond
	// acquireWindow bounds one admission-token attempt so kill and pause
	// stay observable while waiting at the bottleneck.
	acquireWindow = 100 * time.Millisecond
)

// Emitter receives every event an agent produces. Implementations must
// never block; dropping under pressure is the producer contract.
type Emitter func(event.Event)

// Agent is one maze worker. Its fields are set once before Run and the
// loop alone mutates its position and progress; everything observable
// leaves through Emit.
type Agent struct {
	ID    string
	Name  string
	Maze  *maze.Maze
	Start maze.Point
	Tick  time.Duration
	Total int

	Token Token
	Flags *Flags
	Emit  Emitter
	Rand  *rand.Rand
	Log   *slog.Logger
}

// Run walks the maze until the agent completes its workloads and reaches
// the exit, or a kill request is observed. Cancelling ctx counts as a
// kill request. Run blocks the calling goroutine for the agent's whole
// lifetime.
func (a *Agent) Run(ctx context.Context) {
	if a.Tick <= 0 {
		a.Tick = DefaultTick
	}
	if a.Total <= 0 {
		a.Total = task.Total
	}
	if a.Log == nil {
		a.Log = slog.Default()
	}
	if a.Rand == nil {
		a.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := a.Log.With("agent", a.ID, "name", a.Name)

	pos := a.Start
	done := 0
	visited := make(map[maze.Point]bool, len(a.Maze.Checkpoints()))

	emit := func(kind event.Kind, activity string) {
		a.Emit(event.Event{
			Kind:     kind,
			AgentID:  a.ID,
			Name:     a.Name,
			Position: pos,
			Done:     done,
			Total:    a.Total,
			Activity: activity,
			Paused:   a.Flags.Paused(),
		})
	}
	killed := func() bool {
		return a.Flags.Killed() || ctx.Err() != nil
	}

	emit(event.KindSpawn, "starting")

	var scratch []maze.Point
	for {
		if killed() {
			emit(event.KindEnd, "killed by coordinator")
			return
		}
		if a.Flags.Paused() {
			emit(event.KindState, "paused")
			sleep(ctx, pauseInterval)
			continue
		}

		next, ok := route.NextStep(a.Maze, pos, a.targets(done, visited))
		if !ok {
			// No reachable target right now. Wander instead of faulting.
			scratch = a.Maze.Neighbors(scratch[:0], pos)
			if len(scratch) == 0 {
				sleep(ctx, a.Tick)
				continue
			}
			next = scratch[a.Rand.Intn(len(scratch))]
			log.Debug("no route to target, random step", "to", next)
		}

		if next != pos && a.Maze.At(next) == maze.Bottleneck {
			if !a.passBottleneck(ctx, killed, emit) {
				// Kill observed while waiting; the token was never held.
				emit(event.KindEnd, "killed by coordinator")
				return
			}
		}

		pos = next
		emit(event.KindMove, "walking")

		if a.Maze.At(pos) == maze.Checkpoint && done < a.Total {
			done = a.runWorkload(ctx, done, emit, log)
			visited[pos] = true
		}

		if pos == a.Maze.Exit() && done >= a.Total {
			emit(event.KindCompletion, "finished")
			return
		}

		sleep(ctx, a.Tick)
	}
}

// targets returns the cells the agent should route toward: checkpoints it
// has not yet worked at while workloads remain, else the exit. When every
// checkpoint has been visited but workloads remain (fewer checkpoints
// than workloads), all checkpoints become targets again.
func (a *Agent) targets(done int, visited map[maze.Point]bool) map[maze.Point]bool {
	if done >= a.Total {
		return map[maze.Point]bool{a.Maze.Exit(): true}
	}
	targets := make(map[maze.Point]bool)
	for _, cp := range a.Maze.Checkpoints() {
		if !visited[cp] {
			targets[cp] = true
		}
	}
	if len(targets) == 0 {
		for _, cp := range a.Maze.Checkpoints() {
			targets[cp] = true
		}
	}
	return targets
}

// passBottleneck acquires the admission token, occupies the bottleneck
// for one tick, and releases. Returns false only when a kill request is
// observed while still waiting; once acquired, the token is always
// released before the agent can act on kill or pause.
func (a *Agent) passBottleneck(ctx context.Context, killed func() bool, emit func(event.Kind, string)) bool {
	emit(event.KindState, "awaiting bottleneck")
	for {
		if killed() {
			return false
		}
		if a.Flags.Paused() {
			emit(event.KindState, "paused")
			sleep(ctx, pauseInterval)
			continue
		}
		if a.Token.TryAcquire(acquireWindow) {
			break
		}
	}

	emit(event.KindState, "entering bottleneck")
	sleep(ctx, a.Tick)
	a.Token.Release()
	emit(event.KindState, "leaving bottleneck")
	return true
}

// runWorkload executes the workload indexed by the completed-count and
// returns the new count. A failing workload is reported as an error state
// but still counts as attempted.
func (a *Agent) runWorkload(ctx context.Context, done int, emit func(event.Kind, string), log *slog.Logger) int {
	tk, err := task.ByIndex(done)
	if err != nil {
		// The caller re-checks done < Total, so out of range cannot occur
		// here; returning unchanged keeps the count honest regardless.
		return done
	}

	emit(event.KindState, "running: "+tk.Label)
	start := time.Now()
	if _, err := tk.Run(ctx); err != nil {
		log.Warn("workload failed", "task", tk.Label, "error", err)
		done++
		emit(event.KindState, "task error: "+tk.Label)
		return done
	}
	done++
	emit(event.KindState, formatDone(tk.Label, time.Since(start)))
	return done
}

func formatDone(label string, took time.Duration) string {
	return "finished " + label + " in " + took.Round(10*time.Millisecond).String()
}

// sleep waits d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
