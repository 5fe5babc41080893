package server

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vinoflow/concierge/agent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is already enforced for the handshake request.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Location  string `json:"location"`
}

type wsResponse struct {
	Response  string `json:"response"`
	ToolUsed  string `json:"tool_used,omitempty"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// handleChatWS runs a chat conversation over a websocket. Each incoming JSON
// message is one user turn; the transcript lives server-side for the life of
// the connection (and in the history store when configured).
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	var transcript []agent.Message

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket closed unexpectedly: %v", err)
			}
			return
		}
		if req.SessionID != "" {
			sessionID = req.SessionID
		}
		if req.Message == "" {
			continue
		}

		hist := transcript
		if s.history != nil {
			stored, err := s.history.Messages(r.Context(), sessionID)
			if err == nil && len(stored) > 0 {
				hist = stored
			}
		}

		result, err := s.agent.Chat(r.Context(), req.Message, hist, req.Location)
		if err != nil {
			log.Printf("server: websocket chat failed: %v", err)
			if err := conn.WriteJSON(wsResponse{
				SessionID: sessionID,
				Error:     "An unexpected error occurred",
			}); err != nil {
				return
			}
			continue
		}

		transcript = result.Messages
		if s.history != nil {
			turn := result.Messages[len(result.Messages)-2:]
			if err := s.history.Append(r.Context(), sessionID, turn...); err != nil {
				log.Printf("server: persisting websocket history: %v", err)
			}
		}

		if err := conn.WriteJSON(wsResponse{
			Response:  result.Reply,
			ToolUsed:  string(result.Tool),
			SessionID: sessionID,
		}); err != nil {
			return
		}
	}
}
