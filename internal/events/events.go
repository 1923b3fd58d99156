package events

import (
	"context"
	"time"

	"github.com/deptexhq/deptex/internal/model"
)

// Event topic constants
const (
	TopicGraphCommitted = "deptex.graph.committed"

	// Policy events
	TopicBanCreated        = "deptex.policy.ban.created"
	TopicBanRemoved        = "deptex.policy.ban.removed"
	TopicExceptionCreated  = "deptex.policy.exception.created"
	TopicViolationDetected = "deptex.policy.violation.detected"

	// Intel events (published by the core API, consumed here)
	TopicVulnDisclosed = "deptex.vuln.disclosed"

	TopicChatMessage = "deptex.chat.message"
)

// Event types

type GraphCommitted struct {
	Scope       string         `json:"scope"`
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	Worst       model.Severity `json:"worst"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type BanCreated struct {
	Ban *model.BannedVersion `json:"ban"`
}

type BanRemoved struct {
	BanID          string `json:"ban_id"`
	OrganizationID string `json:"organization_id"`
}

type ExceptionCreated struct {
	Exception *model.PolicyException `json:"exception"`
}

type ViolationDetected struct {
	Violation *model.Violation `json:"violation"`
}

type VulnDisclosed struct {
	Vulnerability *model.Vulnerability `json:"vulnerability"`
	Package       string               `json:"package"`
	Version       string               `json:"version"`
	// ProjectIDs lists projects known to carry the affected package.
	ProjectIDs []string `json:"project_ids,omitempty"`
}

type ChatMessagePosted struct {
	Message *model.ChatMessage `json:"message"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events from the bus. Subscribe delivers raw payloads on
// the returned channel until the cancel function runs; cancel closes the
// channel. Topic accepts NATS wildcard syntax ("deptex.policy.>").
type Subscriber interface {
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher drops every event. It stands in for NATS when no bus is
// configured, so callers never branch on nil.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(ctx context.Context, topic string, event any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
