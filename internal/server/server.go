// ABOUTME: HTTP control surface and SSE push stream over the coordinator.
// ABOUTME: Request routing only; every operation forwards to coordinator methods.

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/raikyr/mazewarden/internal/coord"
)

// Server wires the coordinator to an http.Handler.
type Server struct {
	coord  *coord.Coordinator
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds the HTTP layer around a coordinator.
func New(c *coord.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coord:  c,
		logger: logger.With("component", "server"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /api/agents", s.handleListAgents)
	s.mux.HandleFunc("POST /api/spawn", s.handleSpawn)
	s.mux.HandleFunc("POST /api/pause", s.control((*coord.Coordinator).Pause))
	s.mux.HandleFunc("POST /api/resume", s.control((*coord.Coordinator).Resume))
	s.mux.HandleFunc("POST /api/kill", s.control((*coord.Coordinator).Kill))
	s.mux.HandleFunc("POST /api/pause-all", s.controlAll((*coord.Coordinator).PauseAll))
	s.mux.HandleFunc("POST /api/resume-all", s.controlAll((*coord.Coordinator).ResumeAll))
	s.mux.HandleFunc("POST /api/kill-all", s.controlAll((*coord.Coordinator).KillAll))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleEvents is the push stream: seed frames then live frames, each as
// one SSE data line, until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, id := s.coord.Subscribe(r.Context())
	defer s.coord.Unsubscribe(id)
	s.logger.Debug("stream opened", "sub_id", id, "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("stream closed", "sub_id", id)
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				s.logger.Error("marshaling frame", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleSpawn creates agents. Query parameter: count (1..20, clamped).
func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "count must be an integer")
			return
		}
		count = n
	}
	if err := s.coord.Spawn(count); err != nil {
		s.logger.Error("spawn failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "spawn failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// control adapts a per-agent coordinator operation to an endpoint.
// Unknown ids are no-ops, so the response is 204 either way.
func (s *Server) control(op func(*coord.Coordinator, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			s.sendJSONError(w, http.StatusBadRequest, "missing id")
			return
		}
		op(s.coord, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) controlAll(op func(*coord.Coordinator)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op(s.coord)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListAgents returns the last-known state of every live agent.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.coord.AgentStates()); err != nil {
		s.logger.Error("encoding agent list", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","agents":%d}`, s.coord.LiveAgents())
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
