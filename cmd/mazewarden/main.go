// ABOUTME: Entry point for the mazewarden simulation server
// ABOUTME: Serves the maze run over HTTP/SSE; hosts the hidden agent worker mode

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/raikyr/mazewarden/internal/agent"
	"github.com/raikyr/mazewarden/internal/config"
	"github.com/raikyr/mazewarden/internal/coord"
	"github.com/raikyr/mazewarden/internal/maze"
	"github.com/raikyr/mazewarden/internal/server"
	"github.com/raikyr/mazewarden/internal/store"
	"github.com/raikyr/mazewarden/internal/task"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                 _
 _ __ ___   __ _ _______      ____ _ _ __ __| | ___ _ __
| '_ ' _ \ / _' |_  / _ \ \ /\ / / _' | '__/ _' |/ _ \ '_ \
| | | | | | (_| |/ /  __/\ V  V / (_| | | | (_| |  __/ | | |
|_| |_| |_|\__,_/___\___| \_/\_/ \__,_|_|  \__,_|\___|_| |_|
`

var (
	flagConfig   string
	flagScenario string
	flagAddr     string
	flagRuntime  string
	flagSeed     int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mazewarden",
		Short: "Concurrent maze agent simulation server",
		Long: `mazewarden generates a perfect maze and runs a crew of agents through
it concurrently, streaming their progress over HTTP/SSE. Agents race
through checkpoints, contend for a single-slot bottleneck passage, and
burn fixed workloads before heading for the exit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.Flags().StringVar(&flagScenario, "scenario", "", "path to TOML scenario file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides config)")
	rootCmd.Flags().StringVar(&flagRuntime, "runtime", "", "agent runtime: process or goroutine (overrides config)")
	rootCmd.Flags().Int64Var(&flagSeed, "seed", 0, "maze seed (overrides config; 0 means time-based)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the simulation server (same as running with no command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	serveCmd.Flags().AddFlagSet(rootCmd.Flags())

	workerCmd := &cobra.Command{
		Use:    agent.WorkerCommand,
		Hidden: true,
		Short:  "Run a single maze agent as a child process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent.RunWorker(os.Stdin, os.Stdout)
		},
	}

	rootCmd.AddCommand(serveCmd, workerCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var sc *config.Scenario
	if flagScenario != "" {
		sc, err = config.LoadScenario(flagScenario)
		if err != nil {
			return fmt.Errorf("loading scenario: %w", err)
		}
		sc.Apply(cfg)
	}
	applyFlagOverrides(cfg)

	logger := setupLogger(cfg.Logging)

	seed := cfg.Maze.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m, err := maze.Generate(cfg.Maze.Rows, cfg.Maze.Cols, cfg.Maze.Checkpoints, seed)
	if err != nil {
		return fmt.Errorf("generating maze: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	rows, cols := m.Size()
	fmt.Printf("Maze:    %dx%d, %d checkpoints, seed %d\n", rows, cols, len(m.Checkpoints()), seed)
	green.Print("    ▶ ")
	fmt.Printf("Runtime: %s\n", cfg.Agents.Runtime)
	if sc != nil {
		green.Print("    ▶ ")
		fmt.Printf("Scenario: %s\n", sc.Name)
	}
	fmt.Println()

	logger.Info("starting mazewarden",
		"http_addr", cfg.Server.HTTPAddr,
		"runtime", cfg.Agents.Runtime,
		"seed", seed,
	)

	var recorder coord.Recorder
	var ledger *store.Ledger
	if cfg.Ledger.Enabled {
		ledger, err = store.Open(cfg.Ledger.Path, logger)
		if err != nil {
			return fmt.Errorf("opening run ledger: %w", err)
		}
		defer ledger.Close()
		recorder = ledger
	}

	factory, cleanup, err := runnerFactory(cfg, m, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	c, err := coord.New(m, coord.Options{
		Grace:    cfg.Agents.Grace,
		Seed:     seed,
		Logger:   logger,
		Recorder: recorder,
	}, factory)
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go c.Run(runCtx)

	if sc != nil && sc.Spawn > 0 {
		if err := c.Spawn(sc.Spawn); err != nil {
			return fmt.Errorf("spawning scenario agents: %w", err)
		}
	}

	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.New(c, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	c.Shutdown()
	cancelRun()
	return nil
}

func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config) {
	if flagAddr != "" {
		cfg.Server.HTTPAddr = flagAddr
	}
	if flagRuntime != "" {
		cfg.Agents.Runtime = flagRuntime
	}
	if flagSeed != 0 {
		cfg.Maze.Seed = flagSeed
	}
}

// runnerFactory wires the configured agent runtime. The returned cleanup
// removes the bottleneck lock directory for the process runtime.
func runnerFactory(cfg *config.Config, m *maze.Maze, logger *slog.Logger) (coord.RunnerFactory, func(), error) {
	switch cfg.Agents.Runtime {
	case config.RuntimeGoroutine:
		factory := func(emit agent.Emitter) (agent.Runner, error) {
			return agent.NewGoroutineRunner(m, cfg.Agents.Tick, task.Total, emit, logger), nil
		}
		return factory, func() {}, nil

	case config.RuntimeProcess:
		dir, err := os.MkdirTemp("", "mazewarden-")
		if err != nil {
			return nil, nil, fmt.Errorf("creating lock directory: %w", err)
		}
		tokenPath := filepath.Join(dir, "bottleneck.lock")
		factory := func(emit agent.Emitter) (agent.Runner, error) {
			return agent.NewProcessRunner(m, cfg.Agents.Tick, task.Total, tokenPath, emit, logger)
		}
		cleanup := func() { os.RemoveAll(dir) }
		return factory, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown agent runtime %q", cfg.Agents.Runtime)
	}
}
