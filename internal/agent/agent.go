// Package agent implements the AI security analyst: an LLM-backed chat
// that answers questions about a project's dependencies and advisories.
// The gateway assembles the vulnerability context, the model reasons over
// it, and both sides of every exchange are persisted.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/deptexhq/deptex/internal/idgen"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/upstream"
)

// LLMClient abstracts the model provider.
type LLMClient interface {
	Name() string
	// GenerateJSON sends the system prompt plus a JSON-marshaled input and
	// returns the model's JSON response.
	GenerateJSON(ctx context.Context, system string, input any) (json.RawMessage, error)
	Close() error
}

// MessageStore persists chat messages. Satisfied by the gateway store.
type MessageStore interface {
	AddChatMessage(ctx context.Context, m *model.ChatMessage) error
	ListChatMessages(ctx context.Context, conversationID string, limit int) ([]*model.ChatMessage, error)
}

const systemPrompt = `You are the Deptex security analyst. You answer questions about the
dependencies, vulnerabilities, and supply-chain policy of one project,
using only the scan data provided in the input JSON. Cite advisory ids
when you reference them. Respond as a JSON object:
{"text": "<answer in plain prose>", "references": ["<advisory or package ids>"]}`

// historyWindow caps how much prior conversation is replayed to the model.
const historyWindow = 20

// chatInput is the context document handed to the model on each turn.
type chatInput struct {
	Project         *model.Project         `json:"project,omitempty"`
	Dependencies    []*model.Dependency    `json:"dependencies,omitempty"`
	Vulnerabilities []*model.Vulnerability `json:"vulnerabilities,omitempty"`
	Bans            []*model.BannedVersion `json:"bans,omitempty"`
	History         []historyEntry         `json:"history,omitempty"`
	Question        string                 `json:"question"`
}

type historyEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SecurityAgent wires the model, the core API, and message persistence.
type SecurityAgent struct {
	llm    LLMClient
	repo   upstream.Repository
	store  MessageStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSecurityAgent creates an agent. The store may be nil, in which case
// exchanges are not persisted.
func NewSecurityAgent(llm LLMClient, repo upstream.Repository, store MessageStore, logger *slog.Logger) *SecurityAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityAgent{
		llm:    llm,
		repo:   repo,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Chat runs one turn: persist the user message, assemble the project's
// security context, ask the model, persist and return its reply. The
// assistant content is stored raw; callers normalize with ParseContent.
func (a *SecurityAgent) Chat(ctx context.Context, conversationID, projectID, question string) (*model.ChatMessage, error) {
	userMsg := &model.ChatMessage{
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        question,
		CreatedAt:      a.now(),
	}
	if id, err := idgen.New(idgen.PrefixChat); err == nil {
		userMsg.ID = id
	}
	if a.store != nil {
		if err := a.store.AddChatMessage(ctx, userMsg); err != nil {
			return nil, fmt.Errorf("persisting user message: %w", err)
		}
	}

	input := a.buildContext(ctx, conversationID, projectID)
	input.Question = question

	raw, err := a.llm.GenerateJSON(ctx, systemPrompt, input)
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	reply := &model.ChatMessage{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        string(raw),
		CreatedAt:      a.now(),
	}
	if id, err := idgen.New(idgen.PrefixChat); err == nil {
		reply.ID = id
	}
	if a.store != nil {
		if err := a.store.AddChatMessage(ctx, reply); err != nil {
			return nil, fmt.Errorf("persisting assistant message: %w", err)
		}
	}
	return reply, nil
}

// History returns the stored conversation, oldest first.
func (a *SecurityAgent) History(ctx context.Context, conversationID string, limit int) ([]*model.ChatMessage, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.ListChatMessages(ctx, conversationID, limit)
}

// buildContext gathers what the model sees. Each fetch degrades
// independently: a policy outage should not mute the whole analyst.
func (a *SecurityAgent) buildContext(ctx context.Context, conversationID, projectID string) chatInput {
	var input chatInput

	project, err := a.repo.GetProject(ctx, projectID)
	if err != nil {
		a.logger.Debug("chat context: project fetch failed", "project", projectID, "err", err)
	} else {
		input.Project = project
	}

	deps, err := a.repo.ListDependencies(ctx, projectID, "", model.DependencyFilter{})
	if err != nil {
		a.logger.Debug("chat context: dependency fetch failed", "project", projectID, "err", err)
	} else {
		input.Dependencies = deps
	}

	vulns, err := a.repo.ListVulnerabilities(ctx, projectID, "", model.VulnerabilityFilter{})
	if err != nil {
		a.logger.Debug("chat context: vulnerability fetch failed", "project", projectID, "err", err)
	} else {
		input.Vulnerabilities = vulns
	}

	if project != nil {
		bans, err := a.repo.ListBans(ctx, project.OrganizationID)
		if err != nil {
			a.logger.Debug("chat context: ban fetch failed", "org", project.OrganizationID, "err", err)
		} else {
			input.Bans = bans
		}
	}

	if a.store != nil {
		history, err := a.store.ListChatMessages(ctx, conversationID, historyWindow)
		if err != nil {
			a.logger.Debug("chat context: history fetch failed", "conversation", conversationID, "err", err)
		} else {
			for _, m := range history {
				input.History = append(input.History, historyEntry{
					Role: string(m.Role),
					Text: ParseContent(m.Content).Text,
				})
			}
		}
	}
	return input
}
