package model

// CenterKind identifies what the focal node of a graph scope represents.
type CenterKind string

const (
	CenterPackage      CenterKind = "package"
	CenterProject      CenterKind = "project"
	CenterTeam         CenterKind = "team"
	CenterOrganization CenterKind = "organization"
)

// String returns the string representation of the center kind.
func (k CenterKind) String() string {
	return string(k)
}

// Center is the focal entity of a rendered graph. It is rebuilt from scratch
// on every data load, never mutated in place.
type Center struct {
	Name    string     `json:"name"`
	Version string     `json:"version,omitempty"`
	Kind    CenterKind `json:"kind"`
	// Worst is the highest severity reachable anywhere in the subtree.
	Worst  Severity `json:"worst"`
	Banned bool     `json:"banned,omitempty"`
	// LicenseIssue flags a license/compliance problem on the center itself.
	LicenseIssue bool   `json:"license_issue,omitempty"`
	Icon         string `json:"icon,omitempty"`
}

// DependencyNode is one dependency in a scope's subtree together with its
// advisories and transitive children. Each node has exactly one parent, so a
// scope forms a tree rather than a general graph.
type DependencyNode struct {
	Dependency      `json:"dependency"`
	Vulnerabilities []*Vulnerability  `json:"vulnerabilities,omitempty"`
	Children        []*DependencyNode `json:"children,omitempty"`
}

// WorstSeverity returns the highest severity among this node's advisories and
// all of its descendants. When reachableOnly is set, unreachable advisories
// are ignored.
func (n *DependencyNode) WorstSeverity(reachableOnly bool) Severity {
	worst := SeverityNone
	for _, v := range n.Vulnerabilities {
		if reachableOnly && !v.Reachable {
			continue
		}
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
	}
	for _, c := range n.Children {
		if w := c.WorstSeverity(reachableOnly); w.Rank() > worst.Rank() {
			worst = w
		}
	}
	return worst
}

// ProjectTree is the full layout input for a project- or package-scoped
// graph: the center, its own advisories, and its direct dependencies (each
// carrying transitive children).
type ProjectTree struct {
	ProjectID       string            `json:"project_id,omitempty"`
	Center          Center            `json:"center"`
	Vulnerabilities []*Vulnerability  `json:"vulnerabilities,omitempty"`
	Dependencies    []*DependencyNode `json:"dependencies,omitempty"`
}

// Worst returns the highest severity reachable from the center, including
// the center's own advisories.
func (t *ProjectTree) Worst(reachableOnly bool) Severity {
	worst := SeverityNone
	for _, v := range t.Vulnerabilities {
		if reachableOnly && !v.Reachable {
			continue
		}
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
	}
	for _, d := range t.Dependencies {
		if w := d.WorstSeverity(reachableOnly); w.Rank() > worst.Rank() {
			worst = w
		}
	}
	return worst
}

// TeamTree is the layout input for a team-scoped graph: a ring of project
// subtrees around the team center.
type TeamTree struct {
	TeamID   string         `json:"team_id"`
	Center   Center         `json:"center"`
	Projects []*ProjectTree `json:"projects,omitempty"`
}

// Worst returns the highest severity reachable across all member projects.
func (t *TeamTree) Worst(reachableOnly bool) Severity {
	worst := SeverityNone
	for _, p := range t.Projects {
		if w := p.Worst(reachableOnly); w.Rank() > worst.Rank() {
			worst = w
		}
	}
	return worst
}

// OrgTree is the layout input for an organization-scoped graph: a ring of
// team subtrees around the organization center.
type OrgTree struct {
	OrganizationID string      `json:"organization_id"`
	Center         Center      `json:"center"`
	Teams          []*TeamTree `json:"teams,omitempty"`
}

// Worst returns the highest severity reachable across all member teams.
func (t *OrgTree) Worst(reachableOnly bool) Severity {
	worst := SeverityNone
	for _, tm := range t.Teams {
		if w := tm.Worst(reachableOnly); w.Rank() > worst.Rank() {
			worst = w
		}
	}
	return worst
}
