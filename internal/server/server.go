// Package server exposes the gateway's HTTP surface: laid-out graphs for
// canvas clients, proxied policy mutations, saved views and preferences,
// the security-agent chat, and the SSE event stream that keeps all of it
// live.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/deptexhq/deptex/internal/agent"
	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/presence"
	"github.com/deptexhq/deptex/internal/session"
	"github.com/deptexhq/deptex/internal/store"
	"github.com/deptexhq/deptex/internal/upstream"
)

// defaultUser is the acting principal when no X-Deptex-User header is sent.
// The gateway fronts one installation; shared deployments distinguish users
// with the header rather than a second auth layer.
const defaultUser = "local"

// GatewayServer fronts the core API for canvas clients. It builds laid-out
// graphs, proxies policy mutations upstream, persists what the gateway owns
// locally, and fans change events out over SSE.
type GatewayServer struct {
	repo      upstream.Repository
	store     store.Store // nil when running without local persistence
	publisher events.Publisher
	sseHub    *sseHub
	sessions  *session.Manager
	renderer  *canvas.Renderer
	logger    *slog.Logger

	Presence *presence.Tracker
	Agent    *agent.SecurityAgent // nil when no LLM is configured

	watchMu sync.Mutex
	watches map[string]*watchEntry
}

// NewGatewayServer returns a gateway wired to the given core-API repository.
// The store may be nil (views, preferences, chat history, and the audit log
// are then unavailable); debounce <= 0 uses the session default.
func NewGatewayServer(repo upstream.Repository, st store.Store, pub events.Publisher, debounce time.Duration, logger *slog.Logger) *GatewayServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GatewayServer{
		repo:      repo,
		store:     st,
		publisher: pub,
		sseHub:    newSSEHub(),
		renderer:  canvas.NewRenderer(),
		logger:    logger,
		Presence:  presence.New(),
		watches:   make(map[string]*watchEntry),
	}
	s.sessions = session.NewManager(debounce, s.onGraphCommit)
	return s
}

// Renderer exposes the PNG/HTML renderer so callers can load a font before
// serving.
func (s *GatewayServer) Renderer() *canvas.Renderer {
	return s.renderer
}

// Stop shuts down the session manager, flushing nothing: pending proposals
// that have not committed are discarded.
func (s *GatewayServer) Stop() {
	s.sessions.Stop()
}

// recordAndPublish persists an event to the audit log and publishes it to
// NATS. Both are best-effort; failures are logged but do not block the caller.
func (s *GatewayServer) recordAndPublish(ctx context.Context, topic, subject, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "subject", subject, "error", err)
		return
	}
	if s.store != nil {
		if err := s.store.RecordEvent(ctx, &model.Event{
			Topic:   topic,
			Subject: subject,
			Actor:   actor,
			Payload: payload,
		}); err != nil {
			s.logger.Warn("failed to record event", "topic", topic, "subject", subject, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, topic, event); err != nil {
			s.logger.Warn("failed to publish event", "topic", topic, "subject", subject, "error", err)
		}
	}
	s.broadcastEvent(topic, event)
}

// onGraphCommit runs on every debounced session commit. Commits are layout
// churn, not audit material, so they are published and broadcast but never
// written to the event log.
func (s *GatewayServer) onGraphCommit(g canvas.Graph) {
	evt := events.GraphCommitted{
		Scope:       g.Scope,
		Nodes:       g.Stats.Nodes,
		Edges:       g.Stats.Edges,
		Worst:       g.Stats.Worst,
		GeneratedAt: g.Stats.GeneratedAt,
	}
	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, events.TopicGraphCommitted, evt); err != nil {
			s.logger.Warn("failed to publish graph commit", "scope", g.Scope, "error", err)
		}
	}
	s.broadcastEvent(events.TopicGraphCommitted, evt)
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
