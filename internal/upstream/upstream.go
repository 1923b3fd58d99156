// Package upstream talks to the Deptex core API: the scan/intel backend
// that owns organizations, projects, dependency trees, and policy records.
// The gateway never computes this data itself; it fetches, caches, and
// reshapes it for canvas clients.
package upstream

import (
	"context"
	"time"

	"github.com/deptexhq/deptex/internal/model"
)

// Repository is the read/write surface the rest of the gateway programs
// against. Implemented by Client; tests inject fakes.
type Repository interface {
	// Org hierarchy
	GetOrganization(ctx context.Context, orgID string) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]*model.Organization, error)
	GetTeam(ctx context.Context, teamID string) (*model.Team, error)
	ListTeams(ctx context.Context, orgID string) ([]*model.Team, error)
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListProjects(ctx context.Context, teamID string) ([]*model.Project, error)

	// Scan results
	ListDependencies(ctx context.Context, projectID, version string, f model.DependencyFilter) ([]*model.Dependency, error)
	ListVulnerabilities(ctx context.Context, projectID, version string, f model.VulnerabilityFilter) ([]*model.Vulnerability, error)

	// Graph inputs
	ProjectTree(ctx context.Context, projectID, version string) (*model.ProjectTree, error)
	TeamTree(ctx context.Context, teamID string) (*model.TeamTree, error)
	OrgTree(ctx context.Context, orgID string) (*model.OrgTree, error)

	// Policy
	ListBans(ctx context.Context, orgID string) ([]*model.BannedVersion, error)
	CreateBan(ctx context.Context, req *CreateBanRequest) (*model.BannedVersion, error)
	RemoveBan(ctx context.Context, orgID, banID string) error
	ListExceptions(ctx context.Context, orgID string) ([]*model.PolicyException, error)
	CreateException(ctx context.Context, req *CreateExceptionRequest) (*model.PolicyException, error)
	ListBumpPRs(ctx context.Context, orgID string) ([]*model.BumpPR, error)

	// Composite
	FetchProjectView(ctx context.Context, projectID, version string) (*ProjectView, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateBanRequest holds parameters for banning a package version range.
type CreateBanRequest struct {
	OrganizationID string             `json:"organization_id"`
	Package        string             `json:"package"`
	Ecosystem      model.Ecosystem    `json:"ecosystem"`
	Range          string             `json:"range"`
	Reason         string             `json:"reason,omitempty"`
	Action         model.PolicyAction `json:"action"`
	CreatedBy      string             `json:"created_by,omitempty"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	// OpenBumpPRs asks the backend to open upgrade PRs for every project
	// currently violating the new ban.
	OpenBumpPRs bool `json:"open_bump_prs,omitempty"`
}

// CreateExceptionRequest holds parameters for excepting a project from a ban.
type CreateExceptionRequest struct {
	OrganizationID string     `json:"organization_id"`
	BanID          string     `json:"ban_id"`
	ProjectID      string     `json:"project_id"`
	Justification  string     `json:"justification"`
	CreatedBy      string     `json:"created_by,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ProjectView bundles everything the project screen needs in one fetch.
// Degraded lists the secondary concerns that failed; the project itself is
// the primary fetch and its failure fails the whole view.
type ProjectView struct {
	Project      *model.Project         `json:"project"`
	Organization *model.Organization    `json:"organization,omitempty"`
	Dependencies []*model.Dependency    `json:"dependencies"`
	Bans         []*model.BannedVersion `json:"bans,omitempty"`
	Degraded     []string               `json:"degraded,omitempty"`
}
