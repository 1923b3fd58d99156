package model

import "time"

// PolicyAction is what enforcement does when a banned version is detected.
type PolicyAction string

const (
	ActionWarn  PolicyAction = "warn"
	ActionBlock PolicyAction = "block"
)

// String returns the string representation of the policy action.
func (a PolicyAction) String() string {
	return string(a)
}

// IsValid reports whether the action is a known value.
func (a PolicyAction) IsValid() bool {
	switch a {
	case ActionWarn, ActionBlock:
		return true
	}
	return false
}

// BannedVersion is one entry in an organization's ban list. Range uses the
// ecosystem's native constraint syntax and is matched verbatim upstream.
type BannedVersion struct {
	ID           string       `json:"id"`
	OrgID        string       `json:"org_id"`
	Package      string       `json:"package"`
	Ecosystem    Ecosystem    `json:"ecosystem"`
	Range        string       `json:"range"`
	Reason       string       `json:"reason,omitempty"`
	Action       PolicyAction `json:"action"`
	CreatedBy    string       `json:"created_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	Superseded   bool         `json:"superseded,omitempty"`
	SupersededBy string       `json:"superseded_by,omitempty"`
}

// Expired reports whether the ban entry has lapsed at the given instant.
func (b *BannedVersion) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// BumpPRStatus tracks the lifecycle of an automated upgrade pull request.
type BumpPRStatus string

const (
	BumpPending BumpPRStatus = "pending"
	BumpOpen    BumpPRStatus = "open"
	BumpMerged  BumpPRStatus = "merged"
	BumpClosed  BumpPRStatus = "closed"
	BumpFailed  BumpPRStatus = "failed"
)

// String returns the string representation of the bump PR status.
func (s BumpPRStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is a known value.
func (s BumpPRStatus) IsValid() bool {
	switch s {
	case BumpPending, BumpOpen, BumpMerged, BumpClosed, BumpFailed:
		return true
	}
	return false
}

// BumpPR is an automated pull request that bumps a dependency off a banned
// or vulnerable version.
type BumpPR struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Package     string       `json:"package"`
	FromVersion string       `json:"from_version"`
	ToVersion   string       `json:"to_version"`
	Status      BumpPRStatus `json:"status"`
	URL         string       `json:"url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PolicyException grants a project a time-boxed pass on a specific ban entry.
type PolicyException struct {
	ID        string     `json:"id"`
	BanID     string     `json:"ban_id"`
	ProjectID string     `json:"project_id"`
	Reason    string     `json:"reason"`
	GrantedBy string     `json:"granted_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the exception still applies at the given instant.
func (e *PolicyException) Active(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Violation records one detection of a banned version inside a project's
// dependency tree.
type Violation struct {
	ID         string       `json:"id"`
	BanID      string       `json:"ban_id"`
	OrgID      string       `json:"org_id"`
	ProjectID  string       `json:"project_id"`
	Package    string       `json:"package"`
	Version    string       `json:"version"`
	Direct     bool         `json:"direct"`
	Action     PolicyAction `json:"action"`
	Excepted   bool         `json:"excepted,omitempty"`
	DetectedAt time.Time    `json:"detected_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}
