// ABOUTME: Tests for the HTTP control surface and SSE stream framing.
// ABOUTME: Uses httptest against a coordinator on the goroutine runtime.

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raikyr/mazewarden/internal/agent"
	"github.com/raikyr/mazewarden/internal/coord"
	"github.com/raikyr/mazewarden/internal/event"
	"github.com/raikyr/mazewarden/internal/maze"
)

func newTestServer(t *testing.T) (*Server, *coord.Coordinator, context.CancelFunc) {
	t.Helper()
	m, err := maze.Generate(15, 21, 2, 7)
	require.NoError(t, err)
	c, err := coord.New(m, coord.Options{Grace: 2 * time.Second, Seed: 1},
		func(emit agent.Emitter) (agent.Runner, error) {
			return agent.NewGoroutineRunner(m, 5*time.Millisecond, 3, emit, nil), nil
		})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		c.Shutdown()
	})
	return New(c, nil), c, cancel
}

func TestServer_Health(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_SpawnAndList(t *testing.T) {
	s, c, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/spawn?count=2", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	deadline := time.Now().Add(2 * time.Second)
	for c.LiveAgents() != 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 2, c.LiveAgents())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var states []event.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	assert.Len(t, states, 2)
}

func TestServer_SpawnRejectsGarbageCount(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/spawn?count=many", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ControlRequiresID(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, path := range []string{"/api/pause", "/api/resume", "/api/kill"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestServer_ControlUnknownIDIsNoOp(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/kill?id=nobody", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_KillAllEndpoint(t *testing.T) {
	s, c, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/spawn?count=1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/kill-all", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	deadline := time.Now().Add(5 * time.Second)
	for c.LiveAgents() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, c.LiveAgents())
}

func TestServer_EventStreamSeedFrames(t *testing.T) {
	s, _, _ := newTestServer(t)

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var types []string
	for len(types) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame event.Frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		types = append(types, frame.Type)
	}
	assert.Equal(t, []string{event.FrameHello, event.FrameSnapshot, event.FrameLogs}, types)
}
