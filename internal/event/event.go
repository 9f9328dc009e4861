// ABOUTME: Agent state-transition events and subscriber-facing stream frames.
// ABOUTME: JSON field names here are the wire contract for worker pipes and SSE.

package event

import (
	"github.com/raikyr/mazewarden/internal/maze"
)

// Kind classifies an agent state transition.
type Kind string

const (
	KindSpawn      Kind = "spawn"
	KindMove       Kind = "move"
	KindState      Kind = "state"
	KindCompletion Kind = "completion"
	KindEnd        Kind = "end"
)

// Terminal reports whether the kind ends an agent's lifecycle. A
// successful run ends with KindCompletion, a killed one with KindEnd;
// either way the agent emits nothing afterward.
func (k Kind) Terminal() bool {
	return k == KindCompletion || k == KindEnd
}

// Event is one immutable agent state transition. Produced by exactly one
// agent, consumed once by the coordinator, then copied to subscribers.
type Event struct {
	Kind     Kind       `json:"kind"`
	AgentID  string     `json:"agent_id"`
	Name     string     `json:"name"`
	Position maze.Point `json:"position"`
	Done     int        `json:"done"`
	Total    int        `json:"total"`
	Activity string     `json:"activity"`
	Paused   bool       `json:"paused"`
}

// Frame is one message on a subscriber's stream. Type discriminates which
// of the optional fields are populated.
type Frame struct {
	Type string `json:"type"`

	// hello
	RowCount int      `json:"rows,omitempty"`
	ColCount int      `json:"cols,omitempty"`
	Grid     []string `json:"grid,omitempty"`

	// snapshot
	Agents []Event `json:"agents,omitempty"`

	// logs
	Lines []string `json:"lines,omitempty"`

	// agent
	Event *Event `json:"event,omitempty"`

	// log
	Line string `json:"line,omitempty"`
}

// Frame type discriminators.
const (
	FrameHello    = "hello"
	FrameSnapshot = "snapshot"
	FrameLogs     = "logs"
	FrameAgent    = "agent"
	FrameLog      = "log"
)

// Hello builds the one-time maze frame sent to a new subscriber.
func Hello(m *maze.Maze) Frame {
	rows, cols := m.Size()
	return Frame{Type: FrameHello, RowCount: rows, ColCount: cols, Grid: m.Rows()}
}

// Snapshot builds the last-known-state frame for every live agent.
func Snapshot(agents []Event) Frame {
	return Frame{Type: FrameSnapshot, Agents: agents}
}

// Logs builds the recent-log-history frame.
func Logs(lines []string) Frame {
	return Frame{Type: FrameLogs, Lines: lines}
}

// Agent wraps a live agent event for the stream.
func Agent(ev Event) Frame {
	return Frame{Type: FrameAgent, Event: &ev}
}

// Log wraps one formatted log line for the stream.
func Log(line string) Frame {
	return Frame{Type: FrameLog, Line: line}
}
