// Package server exposes the conversation over HTTP: an SSE endpoint for
// browser chat and a WebSocket endpoint for clients that prefer a socket.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solpilot/solpilot/internal/agent"
	"github.com/solpilot/solpilot/internal/session"
	"github.com/solpilot/solpilot/internal/tools"
)

// Server is the HTTP gateway.
type Server struct {
	dispatcher *agent.Dispatcher
	sessions   *session.Manager
	registry   *tools.Registry
	port       int
}

// New creates a Server.
func New(dispatcher *agent.Dispatcher, sessions *session.Manager, registry *tools.Registry, port int) *Server {
	return &Server{
		dispatcher: dispatcher,
		sessions:   sessions,
		registry:   registry,
		port:       port,
	}
}

// Handler returns the route table. Split out so tests can drive it through
// httptest without opening a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// HTTPServer returns a configured http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Message       string `json:"message"`
	WalletAddress string `json:"walletAddress,omitempty"`
	SessionKey    string `json:"sessionKey,omitempty"`
}

// normalize validates the request and fills defaults. It returns a
// human-readable problem when the request cannot start a turn.
func (c *chatRequest) normalize() error {
	c.Message = strings.TrimSpace(c.Message)
	if c.Message == "" {
		return fmt.Errorf("message is required")
	}
	if c.SessionKey == "" {
		c.SessionKey = "web:" + uuid.NewString()
	}
	return nil
}

// handleChat runs one turn and streams its events as server-sent events.
// Failures before the first event use a plain JSON error envelope with a
// non-200 status; once streaming starts, errors travel inside the stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionKey)
	turn := tools.TurnContext{WalletAddress: req.WalletAddress, SessionKey: req.SessionKey}

	events := s.dispatcher.RunTurn(r.Context(), sess, req.Message, turn)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-Key", req.SessionKey)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("event marshal failed", "err", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
		flusher.Flush()
	}

	if err := s.sessions.Save(sess); err != nil {
		slog.Warn("session save failed", "key", sess.Key, "err", err)
	}
}

// handleTools lists the registered tool definitions.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"tools": s.registry.Definitions(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
