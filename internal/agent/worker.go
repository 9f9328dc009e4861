// ABOUTME: Worker-process side of the subprocess runtime.
// ABOUTME: Reads a bootstrap from stdin, emits JSON events on stdout, honors control commands.

package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/raikyr/mazewarden/internal/event"
	"github.com/raikyr/mazewarden/internal/maze"
)

// Bootstrap is the first line a worker reads on stdin: everything it
// needs to run one agent. The maze rides along so workers never share
// memory with the coordinator.
type Bootstrap struct {
	Name      string     `json:"name"`
	Start     maze.Point `json:"start"`
	TickMS    int        `json:"tick_ms"`
	Total     int        `json:"total"`
	TokenPath string     `json:"token_path"`
	Maze      *maze.Maze `json:"maze"`
}

// RunWorker hosts one agent inside the current process. It blocks until
// the agent finishes or is killed; the hidden worker subcommand calls it
// with the process's real stdin and stdout.
func RunWorker(stdin io.Reader, stdout io.Writer) error {
	reader := bufio.NewReader(stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading bootstrap: %w", err)
	}
	var boot Bootstrap
	if err := json.Unmarshal([]byte(line), &boot); err != nil {
		return fmt.Errorf("decoding bootstrap: %w", err)
	}
	if boot.Maze == nil {
		return fmt.Errorf("bootstrap carries no maze")
	}

	token, err := NewFileToken(boot.TokenPath)
	if err != nil {
		return err
	}
	defer token.Close()

	flags := &Flags{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Termination signal from the coordinator (or the terminal) counts as
	// a kill request; on platforms without signal delivery the stdin
	// command channel covers the same ground.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		flags.Kill()
		cancel()
	}()

	go controlLoop(reader, flags, cancel)

	pid := os.Getpid()
	enc := json.NewEncoder(stdout)
	ag := &Agent{
		ID:    strconv.Itoa(pid),
		Name:  boot.Name,
		Maze:  boot.Maze,
		Start: boot.Start,
		Tick:  time.Duration(boot.TickMS) * time.Millisecond,
		Total: boot.Total,
		Token: token,
		Flags: flags,
		Emit: func(ev event.Event) {
			// stdout is the event pipe; a write failure means the
			// coordinator is gone and there is nobody left to tell.
			_ = enc.Encode(ev)
		},
		Rand: rand.New(rand.NewSource(int64(pid) ^ time.Now().UnixNano())),
	}
	ag.Run(ctx)
	return nil
}

// controlLoop applies pause/resume/kill commands arriving on stdin. EOF
// means the coordinator died; the worker stops rather than run orphaned.
func controlLoop(r *bufio.Reader, flags *Flags, cancel context.CancelFunc) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			flags.Kill()
			cancel()
			return
		}
		switch strings.TrimSpace(line) {
		case "pause":
			flags.Pause()
		case "resume":
			flags.Resume()
		case "kill":
			flags.Kill()
			cancel()
		}
	}
}
