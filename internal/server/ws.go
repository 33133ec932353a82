package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/solpilot/solpilot/internal/tools"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser front-end is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS runs the same turn pipeline as /api/chat over a WebSocket. Each
// client frame is a chatRequest; each server frame is one event. The socket
// stays open across turns.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("ws read failed", "err", err)
			}
			return
		}
		if err := req.normalize(); err != nil {
			if werr := conn.WriteJSON(map[string]string{"error": err.Error()}); werr != nil {
				return
			}
			continue
		}

		sess := s.sessions.GetOrCreate(req.SessionKey)
		turn := tools.TurnContext{WalletAddress: req.WalletAddress, SessionKey: req.SessionKey}

		events := s.dispatcher.RunTurn(r.Context(), sess, req.Message, turn)
		for ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// Drain the turn so the dispatcher can finish cleanly.
				for range events {
				}
				return
			}
		}

		if err := s.sessions.Save(sess); err != nil {
			slog.Warn("session save failed", "key", sess.Key, "err", err)
		}
	}
}
