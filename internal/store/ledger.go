// ABOUTME: SQLite-backed run ledger using modernc.org/sqlite.
// ABOUTME: Write-behind from the drain loop; Record never blocks the caller.

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/raikyr/mazewarden/internal/event"
)

// writeQueue bounds the pending-insert buffer. Record drops events once
// it is full rather than slowing the drain loop.
const writeQueue = 4096

// Ledger records every drained event into a SQLite database. Inserts
// run on a background goroutine so the coordinator never waits on disk.
type Ledger struct {
	db     *sql.DB
	queue  chan event.Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Open creates (or appends to) the ledger database at path. Parent
// directories are created if needed.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			kind TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			done INTEGER NOT NULL,
			total INTEGER NOT NULL,
			activity TEXT NOT NULL,
			paused INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	l := &Ledger{
		db:     db,
		queue:  make(chan event.Event, writeQueue),
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.writeLoop()

	logger.Info("run ledger opened", "path", path)
	return l, nil
}

// Record enqueues one event for persistence without blocking. Events
// are dropped if the writer falls too far behind.
func (l *Ledger) Record(ev event.Event) {
	select {
	case l.queue <- ev:
	default:
		l.logger.Debug("ledger queue full, dropping event", "agent", ev.AgentID)
	}
}

func (l *Ledger) writeLoop() {
	defer close(l.done)
	for ev := range l.queue {
		_, err := l.db.Exec(
			`INSERT INTO events (recorded_at, kind, agent_id, name, row, col, done, total, activity, paused)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			time.Now().UTC().Format(time.RFC3339Nano),
			string(ev.Kind), ev.AgentID, ev.Name,
			ev.Position.Row, ev.Position.Col,
			ev.Done, ev.Total, ev.Activity, boolInt(ev.Paused),
		)
		if err != nil {
			l.logger.Warn("ledger insert failed", "error", err)
		}
	}
}

// Close flushes pending inserts and closes the database.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() {
		close(l.queue)
		<-l.done
	})
	return l.db.Close()
}

// EventCount reports how many events the ledger holds. Used by tooling
// and tests, never by the simulation.
func (l *Ledger) EventCount() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting ledger events: %w", err)
	}
	return n, nil
}

// AgentKinds returns the ordered kinds recorded for one agent. Used by
// tooling and tests.
func (l *Ledger) AgentKinds(agentID string) ([]event.Kind, error) {
	rows, err := l.db.Query(`SELECT kind FROM events WHERE agent_id = ? ORDER BY id`, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying agent events: %w", err)
	}
	defer rows.Close()

	var kinds []event.Kind
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning kind: %w", err)
		}
		kinds = append(kinds, event.Kind(k))
	}
	return kinds, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
