package model

// DependencyFilter holds criteria for querying a project's dependencies.
type DependencyFilter struct {
	Severity  []Severity  `json:"severity,omitempty"`
	Ecosystem []Ecosystem `json:"ecosystem,omitempty"`
	Direct    *bool       `json:"direct,omitempty"`
	Zombie    *bool       `json:"zombie,omitempty"`
	Search    string      `json:"search,omitempty"` // substring match on package name
	Sort      string      `json:"sort,omitempty"`   // e.g. "-severity", "name"; prefix "-" = descending
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}

// VulnerabilityFilter holds criteria for querying a project's advisories.
type VulnerabilityFilter struct {
	Severity      []Severity `json:"severity,omitempty"`
	ReachableOnly bool       `json:"reachable_only,omitempty"`
	KEVOnly       bool       `json:"kev_only,omitempty"`
	Package       string     `json:"package,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}
