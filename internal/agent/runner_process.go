// ABOUTME: Subprocess agent runtime: each agent is a child process of the mazewarden binary.
// ABOUTME: Events arrive as JSON lines on stdout; control via OS signals or stdin commands.

package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/raikyr/mazewarden/internal/event"
	"github.com/raikyr/mazewarden/internal/maze"
)

// WorkerCommand is the hidden subcommand the runner invokes on its own
// binary to host one agent.
const WorkerCommand = "worker"

// ProcessRunner hosts each agent as a genuinely independent OS process.
// The only channels back are the child's stdout (events) and the shared
// lock file (admission token), matching the no-shared-memory contract.
type ProcessRunner struct {
	exe       string
	maze      *maze.Maze
	tick      time.Duration
	total     int
	tokenPath string
	emit      Emitter
	log       *slog.Logger

	mu      sync.Mutex
	handles map[string]*processHandle
	closed  bool
}

// NewProcessRunner builds a subprocess runner. tokenPath names the shared
// bottleneck lock file; every worker opens the same path.
func NewProcessRunner(m *maze.Maze, tick time.Duration, total int, tokenPath string, emit Emitter, log *slog.Logger) (*ProcessRunner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating own binary: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProcessRunner{
		exe:       exe,
		maze:      m,
		tick:      tick,
		total:     total,
		tokenPath: tokenPath,
		emit:      emit,
		log:       log.With("component", "runner", "runtime", "process"),
		handles:   make(map[string]*processHandle),
	}, nil
}

// Spawn forks one worker process and starts pumping its events.
func (r *ProcessRunner) Spawn(name string, start maze.Point) (Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRunnerClosed
	}
	r.mu.Unlock()

	cmd := exec.Command(r.exe, WorkerCommand)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	id := strconv.Itoa(cmd.Process.Pid)
	h := &processHandle{
		id:    id,
		name:  name,
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	boot := Bootstrap{
		Name:      name,
		Start:     start,
		TickMS:    int(r.tick / time.Millisecond),
		Total:     r.total,
		TokenPath: r.tokenPath,
		Maze:      r.maze,
	}
	if err := json.NewEncoder(stdin).Encode(boot); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("sending bootstrap: %w", err)
	}

	// Register before the watch goroutine starts so its deregistration
	// can never run ahead of the insert, however fast the worker exits.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, ErrRunnerClosed
	}
	r.handles[id] = h
	r.mu.Unlock()

	go r.watch(h, stdout, cmd.Wait)

	r.log.Debug("worker spawned", "pid", id, "name", name, "start", start)
	return h, nil
}

// watch pumps one worker's stdout to exhaustion, then reaps the process
// and drops its handle. Wait must not run until the pipe is drained:
// os/exec closes the read end on Wait, and a worker's final event (its
// terminal one) can still be in flight when the process exits.
func (r *ProcessRunner) watch(h *processHandle, stdout io.Reader, wait func() error) {
	r.pump(h.id, stdout)
	_ = wait()
	close(h.done)
	r.mu.Lock()
	delete(r.handles, h.id)
	r.mu.Unlock()
}

// pump decodes event lines from one worker's stdout into the shared
// emitter until the pipe closes.
func (r *ProcessRunner) pump(id string, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			r.log.Warn("malformed worker event", "pid", id, "error", err)
			continue
		}
		r.emit(ev)
	}
}

// Close terminates every worker the runner still hosts.
func (r *ProcessRunner) Close() error {
	r.mu.Lock()
	handles := make([]*processHandle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.closed = true
	r.mu.Unlock()

	for _, h := range handles {
		h.Kill()
	}
	deadline := time.After(2 * time.Second)
	for _, h := range handles {
		select {
		case <-h.done:
		case <-deadline:
			h.ForceStop()
		}
	}
	return nil
}

type processHandle struct {
	id   string
	name string
	cmd  *exec.Cmd
	done chan struct{}

	mu    sync.Mutex
	stdin io.WriteCloser
}

func (h *processHandle) ID() string   { return h.id }
func (h *processHandle) Name() string { return h.name }

// Pause suspends the worker: a true OS stop where the platform has one,
// the cooperative stdin command elsewhere.
func (h *processHandle) Pause() {
	if hasSignalControl {
		if err := suspendProcess(h.cmd.Process); err == nil {
			return
		}
	}
	h.writeCommand("pause")
}

// Resume continues a suspended worker. Both channels are used: the signal
// wakes an OS-stopped process, the command clears a cooperative pause.
func (h *processHandle) Resume() {
	if hasSignalControl {
		_ = resumeProcess(h.cmd.Process)
	}
	h.writeCommand("resume")
}

// Kill asks the worker to stop at its next poll point. The cooperative
// command and the termination signal are both sent; a worker stopped by
// Pause is resumed first so it can observe the request.
func (h *processHandle) Kill() {
	if hasSignalControl {
		_ = resumeProcess(h.cmd.Process)
	}
	h.writeCommand("kill")
	if hasSignalControl {
		_ = terminateProcess(h.cmd.Process)
	}
}

// ForceStop tears the worker process down unconditionally.
func (h *processHandle) ForceStop() {
	_ = h.cmd.Process.Kill()
}

func (h *processHandle) Done() <-chan struct{} { return h.done }

func (h *processHandle) writeCommand(cmd string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.stdin, cmd+"\n")
}
