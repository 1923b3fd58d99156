package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/deptexhq/deptex/internal/agent"
	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/idgen"
	"github.com/deptexhq/deptex/internal/model"
)

// chatRequest is one turn sent to the analyst, over REST or the socket.
type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	Question       string `json:"question"`
}

// chatResponse carries the assistant reply plus its normalized content.
type chatResponse struct {
	ConversationID string             `json:"conversation_id"`
	Message        *model.ChatMessage `json:"message,omitempty"`
	Parsed         *agent.Content     `json:"parsed,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// handleAgentChat handles POST /v1/agent/chat: one request/response turn
// with the security analyst. A missing conversation_id starts a new thread.
func (s *GatewayServer) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	if s.Agent == nil {
		writeError(w, http.StatusServiceUnavailable, "security agent not configured")
		return
	}
	var in chatRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if in.ConversationID == "" {
		id, err := idgen.New(idgen.PrefixConversation)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate conversation id")
			return
		}
		in.ConversationID = id
	}

	reply, err := s.Agent.Chat(r.Context(), in.ConversationID, in.ProjectID, in.Question)
	if err != nil {
		s.logger.Error("chat turn failed", "conversation_id", in.ConversationID, "error", err)
		writeError(w, http.StatusBadGateway, "agent request failed")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicChatMessage, in.ConversationID, requestUser(r), events.ChatMessagePosted{Message: reply})

	parsed := agent.ParseContent(reply.Content)
	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: in.ConversationID,
		Message:        reply,
		Parsed:         &parsed,
	})
}

// handleListConversations handles GET /v1/agent/conversations.
func (s *GatewayServer) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ids, err := s.store.ListConversations(r.Context(), parseLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": ids, "total": len(ids)})
}

// handleConversationHistory handles GET /v1/agent/conversations/{id}:
// the stored transcript, oldest first, with assistant bodies normalized.
func (s *GatewayServer) handleConversationHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	msgs, err := s.store.ListChatMessages(r.Context(), r.PathValue("id"), parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	type turn struct {
		*model.ChatMessage
		Parsed agent.Content `json:"parsed"`
	}
	turns := make([]turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, turn{ChatMessage: m, Parsed: agent.ParseContent(m.Content)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": turns, "total": len(turns)})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway's bearer auth already ran; canvas dev servers connect
	// cross-origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleAgentWS handles GET /v1/agent/ws: a socket carrying one chat turn
// per client frame, so the canvas panel holds a single connection instead
// of polling.
func (s *GatewayServer) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	if s.Agent == nil {
		writeError(w, http.StatusServiceUnavailable, "security agent not configured")
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}
	defer conn.Close()

	user := requestUser(r)
	for {
		var in chatRequest
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Question == "" {
			_ = conn.WriteJSON(chatResponse{ConversationID: in.ConversationID, Error: "question is required"})
			continue
		}
		if in.ConversationID == "" {
			id, err := idgen.New(idgen.PrefixConversation)
			if err != nil {
				_ = conn.WriteJSON(chatResponse{Error: "failed to generate conversation id"})
				continue
			}
			in.ConversationID = id
		}

		reply, err := s.Agent.Chat(r.Context(), in.ConversationID, in.ProjectID, in.Question)
		if err != nil {
			s.logger.Error("chat turn failed", "conversation_id", in.ConversationID, "error", err)
			_ = conn.WriteJSON(chatResponse{ConversationID: in.ConversationID, Error: "agent request failed"})
			continue
		}

		s.recordAndPublish(r.Context(), events.TopicChatMessage, in.ConversationID, user, events.ChatMessagePosted{Message: reply})

		parsed := agent.ParseContent(reply.Content)
		if err := conn.WriteJSON(chatResponse{
			ConversationID: in.ConversationID,
			Message:        reply,
			Parsed:         &parsed,
		}); err != nil {
			return
		}
	}
}
