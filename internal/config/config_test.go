// ABOUTME: Tests for YAML config and TOML scenario loading.
// ABOUTME: Covers env expansion, duration parsing, defaults, validation failures.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  http_addr: ":9090"
maze:
  rows: 31
  cols: 51
  checkpoints: 3
  seed: 42
agents:
  runtime: "goroutine"
  tick: "80ms"
  grace: "5s"
logging:
  level: "debug"
  format: "json"
ledger:
  enabled: true
  path: "/tmp/run.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, 31, cfg.Maze.Rows)
	assert.Equal(t, int64(42), cfg.Maze.Seed)
	assert.Equal(t, RuntimeGoroutine, cfg.Agents.Runtime)
	assert.Equal(t, 80*time.Millisecond, cfg.Agents.Tick)
	assert.Equal(t, 5*time.Second, cfg.Agents.Grace)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Ledger.Enabled)
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  http_addr: ":7000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
	assert.Equal(t, def.Maze.Rows, cfg.Maze.Rows)
	assert.Equal(t, def.Agents.Runtime, cfg.Agents.Runtime)
	assert.Equal(t, def.Agents.Tick, cfg.Agents.Tick)
	assert.Equal(t, def.Agents.Grace, cfg.Agents.Grace)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("WARDEN_ADDR", ":6060")
	path := writeFile(t, "config.yaml", `
server:
  http_addr: "${WARDEN_ADDR}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.HTTPAddr)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad duration", "agents:\n  tick: \"soon\"\n", "parsing durations"},
		{"bad runtime", "agents:\n  runtime: \"fibers\"\n", "agents.runtime"},
		{"tiny maze", "maze:\n  rows: 3\n  cols: 3\n", "at least 5x5"},
		{"ledger without path", "ledger:\n  enabled: true\n", "ledger.path"},
		{"not yaml", "{{{{", "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadScenario(t *testing.T) {
	path := writeFile(t, "demo.toml", `
name = "demo"
rows = 23
cols = 43
checkpoints = 2
seed = 7
spawn = 4
`)

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", sc.Name)
	assert.Equal(t, 4, sc.Spawn)

	cfg := Default()
	sc.Apply(cfg)
	assert.Equal(t, 23, cfg.Maze.Rows)
	assert.Equal(t, 43, cfg.Maze.Cols)
	assert.Equal(t, int64(7), cfg.Maze.Seed)
}

func TestLoadScenario_Invalid(t *testing.T) {
	path := writeFile(t, "bad.toml", "spawn = 50\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn")
}

func TestScenario_ApplyLeavesZeroFieldsAlone(t *testing.T) {
	cfg := Default()
	base := *cfg
	sc := &Scenario{Seed: 99}
	sc.Apply(cfg)
	assert.Equal(t, base.Maze.Rows, cfg.Maze.Rows)
	assert.Equal(t, int64(99), cfg.Maze.Seed)
}
