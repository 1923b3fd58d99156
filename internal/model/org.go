package model

import "time"

// Role is a member's permission level within an organization or team.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Organization is the top-level tenant.
type Organization struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Relational data -- populated by queries, not always present.
	Teams   []*Team   `json:"teams,omitempty"`
	Members []*Member `json:"members,omitempty"`
}

// Team groups projects within an organization.
type Team struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`

	Projects []*Project `json:"projects,omitempty"`
}

// Project is a scanned repository or deployable unit. Its asset tier weights
// vulnerability scoring for everything in its dependency tree.
type Project struct {
	ID             string    `json:"id"`
	TeamID         string    `json:"team_id"`
	OrganizationID string    `json:"organization_id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	RepoURL        string    `json:"repo_url,omitempty"`
	Framework      string    `json:"framework,omitempty"`
	DefaultVersion string    `json:"default_version,omitempty"`
	Tier           AssetTier `json:"tier"`
	// TierWeight overrides Tier.Weight() when set (custom criticality).
	TierWeight *float64  `json:"tier_weight,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EffectiveTierWeight returns the custom tier weight when configured, else
// the tier's fixed weight.
func (p *Project) EffectiveTierWeight() float64 {
	if p.TierWeight != nil {
		return *p.TierWeight
	}
	return p.Tier.Weight()
}

// Member is a user's membership record in an organization.
type Member struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name,omitempty"`
	Role           Role      `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}
