// ABOUTME: Tests for both agent runners and the worker wire contract.
// ABOUTME: Covers spawn/kill lifecycle, close semantics, bootstrap codec, reap ordering.

package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raikyr/mazewarden/internal/event"
	"github.com/raikyr/mazewarden/internal/maze"
)

func TestGoroutineRunner_SpawnToCompletion(t *testing.T) {
	m := corridorMaze(t)
	rec := newRecorder()
	r := NewGoroutineRunner(m, testTick, 1, rec.emit, nil)
	defer r.Close()

	h, err := r.Spawn("wisp-1", m.Start())
	require.NoError(t, err)
	assert.Equal(t, "wisp-1", h.Name())
	assert.NotEmpty(t, h.ID())

	term := rec.waitTerminal(t, 5*time.Second)
	assert.Equal(t, event.KindCompletion, term.Kind)
	assert.Equal(t, h.ID(), term.AgentID)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("handle Done never closed after completion")
	}
}

func TestGoroutineRunner_KillHonoredWithinGrace(t *testing.T) {
	m := corridorMaze(t)
	rec := newRecorder()
	r := NewGoroutineRunner(m, 50*time.Millisecond, 3, rec.emit, nil)
	defer r.Close()

	h, err := r.Spawn("wisp-k", m.Start())
	require.NoError(t, err)
	h.Kill()

	term := rec.waitTerminal(t, 2*time.Second)
	assert.Equal(t, event.KindEnd, term.Kind)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("killed agent never finished")
	}
}

func TestGoroutineRunner_PauseResumeRoundTrip(t *testing.T) {
	m := corridorMaze(t)
	rec := newRecorder()
	r := NewGoroutineRunner(m, testTick, 1, rec.emit, nil)
	defer r.Close()

	h, err := r.Spawn("wisp-p", m.Start())
	require.NoError(t, err)
	h.Pause()
	time.Sleep(400 * time.Millisecond)
	h.Resume()

	term := rec.waitTerminal(t, 5*time.Second)
	assert.Equal(t, event.KindCompletion, term.Kind)
}

func TestGoroutineRunner_ClosedRejectsSpawn(t *testing.T) {
	m := corridorMaze(t)
	rec := newRecorder()
	r := NewGoroutineRunner(m, testTick, 1, rec.emit, nil)
	require.NoError(t, r.Close())

	_, err := r.Spawn("late", m.Start())
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestBootstrap_RoundTrip(t *testing.T) {
	m, err := maze.Generate(15, 21, 2, 3)
	require.NoError(t, err)

	boot := Bootstrap{
		Name:      "wisp-9",
		Start:     m.Start(),
		TickMS:    170,
		Total:     3,
		TokenPath: "/tmp/bottleneck.lock",
		Maze:      m,
	}
	data, err := json.Marshal(boot)
	require.NoError(t, err)

	var back Bootstrap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, boot.Name, back.Name)
	assert.Equal(t, boot.Start, back.Start)
	assert.Equal(t, boot.TickMS, back.TickMS)
	require.NotNil(t, back.Maze)
	assert.Equal(t, m.Rows(), back.Maze.Rows())
	assert.Equal(t, m.BottleneckCell(), back.Maze.BottleneckCell())
}

func TestControlLoop_AppliesCommands(t *testing.T) {
	flags := &Flags{}
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := bufio.NewReader(strings.NewReader("pause\nresume\npause\n"))
	done := make(chan struct{})
	go func() {
		controlLoop(r, flags, cancel)
		close(done)
	}()

	select {
	case <-done: // EOF after the last command
	case <-time.After(time.Second):
		t.Fatal("control loop did not drain input")
	}
	// EOF counts as a kill: an orphaned worker must not keep running.
	assert.True(t, flags.Killed())
	assert.True(t, flags.Paused())
}

func TestControlLoop_KillCancels(t *testing.T) {
	flags := &Flags{}
	ctx, cancel := context.WithCancel(context.Background())

	r := bufio.NewReader(strings.NewReader("kill\n"))
	go controlLoop(r, flags, cancel)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("kill command did not cancel the context")
	}
	assert.True(t, flags.Killed())
}

func newTestProcessRunner(rec *recorder) *ProcessRunner {
	return &ProcessRunner{
		emit:    rec.emit,
		log:     slog.Default(),
		handles: make(map[string]*processHandle),
	}
}

func eventLine(t *testing.T, ev event.Event) string {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(data) + "\n"
}

func TestProcessRunner_WatchDrainsStdoutBeforeReap(t *testing.T) {
	rec := newRecorder()
	r := newTestProcessRunner(rec)

	h := &processHandle{id: "42", name: "wisp-w", done: make(chan struct{})}
	r.handles[h.id] = h

	stdout := strings.NewReader(
		eventLine(t, event.Event{Kind: event.KindMove, AgentID: "42", Name: "wisp-w"}) +
			eventLine(t, event.Event{Kind: event.KindCompletion, AgentID: "42", Name: "wisp-w", Done: 3, Total: 3}),
	)

	// A worker's terminal event can still sit in the pipe when the
	// process exits; reaping must not run until the pipe is drained.
	var emittedAtWait int
	wait := func() error {
		emittedAtWait = len(rec.all())
		return nil
	}
	r.watch(h, stdout, wait)

	assert.Equal(t, 2, emittedAtWait)
	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, event.KindCompletion, events[1].Kind)

	select {
	case <-h.Done():
	default:
		t.Fatal("watch returned without closing Done")
	}
}

func TestProcessRunner_WatchDeregistersHandle(t *testing.T) {
	rec := newRecorder()
	r := newTestProcessRunner(rec)

	h := &processHandle{id: "7", name: "wisp-d", done: make(chan struct{})}
	r.handles[h.id] = h

	// An instantly-exiting worker produces no events at all.
	r.watch(h, strings.NewReader(""), func() error { return nil })

	r.mu.Lock()
	_, still := r.handles[h.id]
	r.mu.Unlock()
	assert.False(t, still, "handle left registered after reap")
	assert.Empty(t, rec.all())
}
