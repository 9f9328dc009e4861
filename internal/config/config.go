// ABOUTME: Configuration loading and parsing for the mazewarden server.
// ABOUTME: YAML with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Runtime names for agents.runtime.
const (
	RuntimeProcess   = "process"
	RuntimeGoroutine = "goroutine"
)

// Config is the complete mazewarden configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Maze    MazeConfig    `yaml:"maze"`
	Agents  AgentsConfig  `yaml:"agents"`
	Logging LoggingConfig `yaml:"logging"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// MazeConfig controls generation. Seed 0 means time-based.
type MazeConfig struct {
	Rows        int   `yaml:"rows"`
	Cols        int   `yaml:"cols"`
	Checkpoints int   `yaml:"checkpoints"`
	Seed        int64 `yaml:"seed"`
}

// AgentsConfig holds agent runtime selection and timing.
type AgentsConfig struct {
	Runtime string `yaml:"runtime"` // "process" or "goroutine"

	Tick  time.Duration `yaml:"-"`
	Grace time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TickRaw  string `yaml:"tick"`
	GraceRaw string `yaml:"grace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LedgerConfig enables the optional SQLite run ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{HTTPAddr: ":8080"},
		Maze:    MazeConfig{Rows: 23, Cols: 43, Checkpoints: 2},
		Agents:  AgentsConfig{Runtime: RuntimeProcess, Tick: 170 * time.Millisecond, Grace: 3 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file, expands ${VAR_NAME} environment
// references, parses duration fields, and validates the result.
// Unset fields fall back to Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	cfg.Agents.Tick = 0
	cfg.Agents.Grace = 0
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with the environment value; unset
// variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) parseDurations() error {
	var err error
	if c.Agents.TickRaw != "" {
		c.Agents.Tick, err = time.ParseDuration(c.Agents.TickRaw)
		if err != nil {
			return fmt.Errorf("parsing agents.tick %q: %w", c.Agents.TickRaw, err)
		}
	}
	if c.Agents.GraceRaw != "" {
		c.Agents.Grace, err = time.ParseDuration(c.Agents.GraceRaw)
		if err != nil {
			return fmt.Errorf("parsing agents.grace %q: %w", c.Agents.GraceRaw, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = def.Server.HTTPAddr
	}
	if c.Maze.Rows == 0 {
		c.Maze.Rows = def.Maze.Rows
	}
	if c.Maze.Cols == 0 {
		c.Maze.Cols = def.Maze.Cols
	}
	if c.Maze.Checkpoints == 0 {
		c.Maze.Checkpoints = def.Maze.Checkpoints
	}
	if c.Agents.Runtime == "" {
		c.Agents.Runtime = def.Agents.Runtime
	}
	if c.Agents.Tick == 0 {
		c.Agents.Tick = def.Agents.Tick
	}
	if c.Agents.Grace == 0 {
		c.Agents.Grace = def.Agents.Grace
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate checks ranges and enumerations. Returns the first failure.
func (c *Config) Validate() error {
	if c.Maze.Rows < 5 || c.Maze.Cols < 5 {
		return fmt.Errorf("maze dimensions must be at least 5x5, got %dx%d", c.Maze.Rows, c.Maze.Cols)
	}
	if c.Maze.Checkpoints < 1 {
		return fmt.Errorf("maze.checkpoints must be at least 1, got %d", c.Maze.Checkpoints)
	}
	switch c.Agents.Runtime {
	case RuntimeProcess, RuntimeGoroutine:
	default:
		return fmt.Errorf("agents.runtime must be %q or %q, got %q", RuntimeProcess, RuntimeGoroutine, c.Agents.Runtime)
	}
	if c.Agents.Tick <= 0 {
		return fmt.Errorf("agents.tick must be positive")
	}
	if c.Agents.Grace <= 0 {
		return fmt.Errorf("agents.grace must be positive")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required when the ledger is enabled")
	}
	return nil
}
