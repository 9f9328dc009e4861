// ABOUTME: TOML scenario presets: maze shape, seed, and an initial agent batch.
// ABOUTME: A scenario overrides the maze section and optionally auto-spawns on startup.

package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Scenario is a reproducible simulation preset. Zero fields leave the
// base configuration untouched.
type Scenario struct {
	Name        string `toml:"name"`
	Rows        int    `toml:"rows"`
	Cols        int    `toml:"cols"`
	Checkpoints int    `toml:"checkpoints"`
	Seed        int64  `toml:"seed"`
	Spawn       int    `toml:"spawn"`
}

// LoadScenario reads a scenario file, expanding ${VAR_NAME} references
// like the main config loader.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var sc Scenario
	if _, err := toml.Decode(expandEnvVars(string(data)), &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks scenario ranges.
func (s *Scenario) Validate() error {
	if s.Rows != 0 && s.Rows < 5 {
		return fmt.Errorf("rows must be at least 5, got %d", s.Rows)
	}
	if s.Cols != 0 && s.Cols < 5 {
		return fmt.Errorf("cols must be at least 5, got %d", s.Cols)
	}
	if s.Checkpoints < 0 {
		return fmt.Errorf("checkpoints must not be negative, got %d", s.Checkpoints)
	}
	if s.Spawn < 0 || s.Spawn > 20 {
		return fmt.Errorf("spawn must be in 0..20, got %d", s.Spawn)
	}
	return nil
}

// Apply folds the scenario's non-zero fields into cfg.
func (s *Scenario) Apply(cfg *Config) {
	if s.Rows != 0 {
		cfg.Maze.Rows = s.Rows
	}
	if s.Cols != 0 {
		cfg.Maze.Cols = s.Cols
	}
	if s.Checkpoints != 0 {
		cfg.Maze.Checkpoints = s.Checkpoints
	}
	if s.Seed != 0 {
		cfg.Maze.Seed = s.Seed
	}
}
