// Package client provides a transport-agnostic interface for the deptex
// gateway and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/deptexhq/deptex/internal/agent"
	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/depscore"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/upstream"
)

// GatewayClient is the interface that all dx CLI commands use to communicate
// with the gateway. It is implemented by HTTPClient (default) and can be
// backed by any transport.
type GatewayClient interface {
	// Hierarchy
	ListOrganizations(ctx context.Context) ([]*model.Organization, error)
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	ListTeams(ctx context.Context, orgID string) ([]*model.Team, error)
	GetTeam(ctx context.Context, id string) (*model.Team, error)
	ListProjects(ctx context.Context, teamID string) ([]*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjectView(ctx context.Context, id string) (*upstream.ProjectView, error)

	// Graph
	GetGraph(ctx context.Context, req *GraphRequest) (*GraphResponse, error)
	ExportGraph(ctx context.Context, req *GraphRequest, format string) ([]byte, error)
	Score(ctx context.Context, scoreCtx depscore.Context) (*ScoreResponse, error)

	// Inventory
	ListDependencies(ctx context.Context, req *ListDependenciesRequest) (*ListDependenciesResponse, error)
	ListVulnerabilities(ctx context.Context, req *ListVulnerabilitiesRequest) (*ListVulnerabilitiesResponse, error)

	// Policy
	ListBans(ctx context.Context, orgID string) ([]*model.BannedVersion, error)
	CreateBan(ctx context.Context, orgID string, req *CreateBanRequest) (*model.BannedVersion, error)
	RemoveBan(ctx context.Context, orgID, banID string) error
	ListExceptions(ctx context.Context, orgID string) ([]*model.PolicyException, error)
	CreateException(ctx context.Context, orgID string, req *CreateExceptionRequest) (*model.PolicyException, error)
	ListBumpPRs(ctx context.Context, orgID string) ([]*model.BumpPR, error)
	ListOrgViolations(ctx context.Context, orgID string) ([]*model.Violation, error)
	ListProjectViolations(ctx context.Context, projectID string) ([]*model.Violation, error)

	// Saved views
	ListViews(ctx context.Context) ([]*model.SavedView, error)
	GetView(ctx context.Context, name string) (*model.SavedView, error)
	SaveView(ctx context.Context, name string, req *SaveViewRequest) (*model.SavedView, error)
	DeleteView(ctx context.Context, name string) error

	// Preferences
	ListPreferences(ctx context.Context) ([]*model.Preference, error)
	GetPreference(ctx context.Context, key string) (*model.Preference, error)
	SetPreference(ctx context.Context, key, value string) (*model.Preference, error)
	DeletePreference(ctx context.Context, key string) error

	// Watch sessions
	StartWatch(ctx context.Context, req *StartWatchRequest) (*WatchEntry, error)
	ListWatches(ctx context.Context) ([]*WatchStatus, error)
	GetWatchGraph(ctx context.Context, scope string) (*canvas.Graph, error)
	StopWatch(ctx context.Context, scope string) error

	// Security agent
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ListConversations(ctx context.Context) ([]string, error)
	GetConversation(ctx context.Context, id string, limit int) ([]ConversationTurn, error)

	// Audit, presence, live events
	ListEvents(ctx context.Context, subject string, limit int) ([]*model.Event, error)
	Heartbeat(ctx context.Context, scope, user, via string) error
	GetPresence(ctx context.Context, scope string) (*PresenceResponse, error)
	StreamEvents(ctx context.Context, opts StreamOptions, fn func(StreamEvent) error) error

	// Health
	Health(ctx context.Context) (*HealthStatus, error)

	// Lifecycle
	Close() error
}

// GraphRequest identifies a graph to fetch. Scope is "project:<id>",
// "team:<id>", or "org:<id>".
type GraphRequest struct {
	Scope         string
	Version       string
	ReachableOnly bool
}

// GraphResponse is a rendered graph plus the degradation banner for fetches
// where secondary data was unavailable.
type GraphResponse struct {
	canvas.Graph
	Degraded []string `json:"degraded,omitempty"`
}

// ScoreResponse is the response from Score.
type ScoreResponse struct {
	Score   int                `json:"score"`
	Bracket model.ScoreBracket `json:"bracket"`
}

// ListDependenciesRequest holds parameters for listing a project's
// dependencies.
type ListDependenciesRequest struct {
	ProjectID string
	Version   string
	Ecosystem []string
	Severity  []string
	Direct    *bool
	Zombie    *bool
	Search    string
	Sort      string
	Limit     int
}

// ListDependenciesResponse is the response from ListDependencies.
type ListDependenciesResponse struct {
	Dependencies []*model.Dependency `json:"dependencies"`
	Total        int                 `json:"total"`
}

// ListVulnerabilitiesRequest holds parameters for listing a project's
// vulnerabilities.
type ListVulnerabilitiesRequest struct {
	ProjectID     string
	Version       string
	Severity      []string
	ReachableOnly bool
	KEVOnly       bool
	Package       string
	Limit         int
}

// ListVulnerabilitiesResponse is the response from ListVulnerabilities.
type ListVulnerabilitiesResponse struct {
	Vulnerabilities []*model.Vulnerability `json:"vulnerabilities"`
	Total           int                    `json:"total"`
}

// CreateBanRequest holds parameters for banning a package version range.
type CreateBanRequest struct {
	Package     string     `json:"package"`
	Ecosystem   string     `json:"ecosystem,omitempty"`
	Range       string     `json:"range,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Action      string     `json:"action"`
	CreatedBy   string     `json:"created_by,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	OpenBumpPRs bool       `json:"open_bump_prs,omitempty"`
}

// CreateExceptionRequest holds parameters for granting a project an
// exception to a ban.
type CreateExceptionRequest struct {
	BanID         string     `json:"ban_id"`
	ProjectID     string     `json:"project_id"`
	Justification string     `json:"justification"`
	CreatedBy     string     `json:"created_by,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// SaveViewRequest holds the persisted body of a saved view. The name rides
// the URL, the identity rides the request header.
type SaveViewRequest struct {
	Scope   string          `json:"scope"`
	Filters json.RawMessage `json:"filters,omitempty"`
	Layout  json.RawMessage `json:"layout,omitempty"`
}

// StartWatchRequest holds parameters for registering a watched scope.
type StartWatchRequest struct {
	Scope         string `json:"scope"`
	Version       string `json:"version,omitempty"`
	ReachableOnly bool   `json:"reachable_only,omitempty"`
}

// WatchEntry is a registered watch session.
type WatchEntry struct {
	Scope         string    `json:"scope"`
	Label         string    `json:"label"`
	Version       string    `json:"version,omitempty"`
	ReachableOnly bool      `json:"reachable_only,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// WatchStatus is a watch entry plus its commit state.
type WatchStatus struct {
	WatchEntry
	Committed bool          `json:"committed"`
	Stats     *canvas.Stats `json:"stats,omitempty"`
}

// ChatRequest holds one question for the security agent. An empty
// ConversationID starts a new thread.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	Question       string `json:"question"`
}

// ChatResponse is the assistant's reply plus its normalized content.
type ChatResponse struct {
	ConversationID string             `json:"conversation_id"`
	Message        *model.ChatMessage `json:"message,omitempty"`
	Parsed         *agent.Content     `json:"parsed,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// ConversationTurn is one stored chat message with its normalized content.
type ConversationTurn struct {
	*model.ChatMessage
	Parsed agent.Content `json:"parsed"`
}

// PresenceResponse is the roster of live viewers for a scope.
type PresenceResponse struct {
	Scope   string           `json:"scope"`
	Viewers []PresenceViewer `json:"viewers"`
	Count   int              `json:"count"`
}

// PresenceViewer is one live viewer on a scope's roster.
type PresenceViewer struct {
	User             string    `json:"user"`
	Scope            string    `json:"scope"`
	LastSeen         time.Time `json:"last_seen"`
	FirstSeen        time.Time `json:"first_seen"`
	Via              string    `json:"via"`
	IdleSecs         int       `json:"idle_secs"`
	Heartbeats       int       `json:"heartbeats"`
	ViewDurationSecs int       `json:"view_duration_secs"`
}

// StreamOptions configures an SSE subscription. Zero Topics means all
// topics; a non-empty Scope registers the stream as a presence heartbeat
// source; LastEventID resumes from the server's replay buffer.
type StreamOptions struct {
	Topics      []string
	Scope       string
	LastEventID uint64
}

// StreamEvent is one event received from the gateway's live stream.
type StreamEvent struct {
	ID    uint64
	Topic string
	Data  json.RawMessage
}

// HealthStatus reports gateway and upstream liveness.
type HealthStatus struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream,omitempty"`
}
