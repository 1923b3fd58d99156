package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deptexhq/deptex/internal/agent"
	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/model"
)

// fakeLLM returns a canned reply.
type fakeLLM struct {
	reply json.RawMessage
	err   error
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) GenerateJSON(_ context.Context, _ string, _ any) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Close() error { return nil }

// newChatServer wires a test server with the security agent enabled.
func newChatServer(llm *fakeLLM) (*GatewayServer, *mockRepo, *mockStore, http.Handler) {
	srv, repo, ms, handler := newTestServer()
	seedHierarchy(repo)
	srv.Agent = agent.NewSecurityAgent(llm, repo, ms, testLogger())
	return srv, repo, ms, handler
}

func TestHandleAgentChat(t *testing.T) {
	llm := &fakeLLM{reply: json.RawMessage(`{"text":"Upgrade left-pad to 1.3.1","references":["GHSA-aaaa"]}`)}
	_, _, ms, handler := newChatServer(llm)

	rec := doJSON(t, handler, "POST", "/v1/agent/chat", map[string]any{
		"project_id": "prj-1",
		"question":   "what should I fix first?",
	})
	requireStatus(t, rec, 200)
	var resp chatResponse
	decodeJSON(t, rec, &resp)

	if !strings.HasPrefix(resp.ConversationID, "conv-") {
		t.Fatalf("expected a minted conv- id, got %q", resp.ConversationID)
	}
	if resp.Message == nil || resp.Message.Role != model.RoleAssistant {
		t.Fatalf("expected an assistant reply, got %+v", resp.Message)
	}
	if resp.Parsed == nil || resp.Parsed.Text != "Upgrade left-pad to 1.3.1" {
		t.Fatalf("unexpected parsed content: %+v", resp.Parsed)
	}
	if len(resp.Parsed.References) != 1 || resp.Parsed.References[0] != "GHSA-aaaa" {
		t.Fatalf("unexpected references: %v", resp.Parsed.References)
	}

	// Both sides of the turn were persisted.
	msgs := ms.chats[resp.ConversationID]
	if len(msgs) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if !strings.HasPrefix(msgs[0].ID, "chat-") {
		t.Fatalf("expected chat- message ids, got %q", msgs[0].ID)
	}

	// The turn hit the audit log under the conversation subject.
	topics := ms.eventTopics()
	if len(topics) != 1 || topics[0] != events.TopicChatMessage {
		t.Fatalf("expected one %s audit event, got %v", events.TopicChatMessage, topics)
	}
	if ms.events[0].Subject != resp.ConversationID {
		t.Fatalf("expected audit subject %q, got %q", resp.ConversationID, ms.events[0].Subject)
	}
}

func TestHandleAgentChat_ExistingConversation(t *testing.T) {
	llm := &fakeLLM{reply: json.RawMessage(`{"text":"still fine"}`)}
	_, _, ms, handler := newChatServer(llm)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, "POST", "/v1/agent/chat", map[string]any{
			"conversation_id": "conv-fixed",
			"project_id":      "prj-1",
			"question":        fmt.Sprintf("turn %d", i),
		})
		requireStatus(t, rec, 200)
		var resp chatResponse
		decodeJSON(t, rec, &resp)
		if resp.ConversationID != "conv-fixed" {
			t.Fatalf("expected the caller's conversation id, got %q", resp.ConversationID)
		}
	}

	if got := len(ms.chats["conv-fixed"]); got != 4 {
		t.Fatalf("expected 4 messages across 2 turns, got %d", got)
	}
}

func TestHandleAgentChat_NotConfigured(t *testing.T) {
	_, _, _, handler := newTestServer()

	rec := doJSON(t, handler, "POST", "/v1/agent/chat", map[string]any{"question": "hello"})
	requireStatus(t, rec, 503)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != "security agent not configured" {
		t.Fatalf("unexpected error: %q", body["error"])
	}
}

func TestHandleAgentChat_LLMError(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("model overloaded")}
	_, _, _, handler := newChatServer(llm)

	rec := doJSON(t, handler, "POST", "/v1/agent/chat", map[string]any{
		"project_id": "prj-1",
		"question":   "anything",
	})
	requireStatus(t, rec, 502)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != "agent request failed" {
		t.Fatalf("unexpected error: %q", body["error"])
	}
}

func TestHandleAgentChat_MissingQuestion(t *testing.T) {
	llm := &fakeLLM{reply: json.RawMessage(`{"text":"x"}`)}
	_, _, _, handler := newChatServer(llm)

	rec := doJSON(t, handler, "POST", "/v1/agent/chat", map[string]any{"project_id": "prj-1"})
	requireStatus(t, rec, 400)
}

func TestHandleConversationHistory(t *testing.T) {
	llm := &fakeLLM{reply: json.RawMessage(`{"text":"patch lodash","references":["GHSA-bbbb"]}`)}
	_, _, _, handler := newChatServer(llm)

	rec := doJSON(t, handler, "POST", "/v1/agent/chat", map[string]any{
		"conversation_id": "conv-hist",
		"project_id":      "prj-1",
		"question":        "what about lodash?",
	})
	requireStatus(t, rec, 200)

	rec = doJSON(t, handler, "GET", "/v1/agent/conversations/conv-hist", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Messages []struct {
			Role    model.ChatRole `json:"role"`
			Content string         `json:"content"`
			Parsed  agent.Content  `json:"parsed"`
		} `json:"messages"`
		Total int `json:"total"`
	}
	decodeJSON(t, rec, &body)
	if body.Total != 2 {
		t.Fatalf("expected 2 turns, got %d", body.Total)
	}
	if body.Messages[0].Role != model.RoleUser || body.Messages[0].Parsed.Text != "what about lodash?" {
		t.Fatalf("unexpected first turn: %+v", body.Messages[0])
	}
	if body.Messages[1].Parsed.Text != "patch lodash" {
		t.Fatalf("expected normalized assistant body, got %+v", body.Messages[1])
	}

	rec = doJSON(t, handler, "GET", "/v1/agent/conversations", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Conversations []string `json:"conversations"`
		Total         int      `json:"total"`
	}
	decodeJSON(t, rec, &list)
	if list.Total != 1 || list.Conversations[0] != "conv-hist" {
		t.Fatalf("unexpected conversation list: %+v", list)
	}
}

func TestHandleAgentWS(t *testing.T) {
	llm := &fakeLLM{reply: json.RawMessage(`{"text":"patch left-pad"}`)}
	_, _, ms, handler := newChatServer(llm)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agent/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	if err := conn.WriteJSON(chatRequest{ProjectID: "prj-1", Question: "what now?"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var turn chatResponse
	if err := conn.ReadJSON(&turn); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if turn.Error != "" {
		t.Fatalf("unexpected error frame: %q", turn.Error)
	}
	if !strings.HasPrefix(turn.ConversationID, "conv-") {
		t.Fatalf("expected a minted conv- id, got %q", turn.ConversationID)
	}
	if turn.Parsed == nil || turn.Parsed.Text != "patch left-pad" {
		t.Fatalf("unexpected parsed content: %+v", turn.Parsed)
	}

	// An empty question gets an error frame and keeps the socket open.
	if err := conn.WriteJSON(chatRequest{ConversationID: turn.ConversationID}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var errFrame chatResponse
	if err := conn.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if errFrame.Error != "question is required" {
		t.Fatalf("expected an error frame, got %+v", errFrame)
	}

	// The successful turn was persisted like a REST turn.
	deadline := time.Now().Add(time.Second)
	for ms.chatCount(turn.ConversationID) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 stored messages, got %d", ms.chatCount(turn.ConversationID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleAgentWS_NotConfigured(t *testing.T) {
	_, _, _, handler := newTestServer()

	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agent/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the handshake to fail without an agent")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 handshake response, got %+v", resp)
	}
	resp.Body.Close()
}
