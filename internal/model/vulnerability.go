package model

import "time"

// Vulnerability is a single security advisory attached to a dependency or to
// a graph center.
type Vulnerability struct {
	ID       string   `json:"id"`
	Aliases  []string `json:"aliases,omitempty"`
	Summary  string   `json:"summary"`
	Severity Severity `json:"severity"`

	CVSS float64 `json:"cvss"`
	EPSS float64 `json:"epss"`
	// CISAKEV is true when the advisory appears in CISA's Known Exploited
	// Vulnerabilities catalog.
	CISAKEV bool `json:"cisa_kev"`
	// Reachable is true when static analysis determined the vulnerable code
	// path is invoked by the consuming project.
	Reachable bool `json:"reachable"`

	FixedVersion string     `json:"fixed_version,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`

	// Score is the platform-computed depscore when already available; nil
	// means the caller computes it locally.
	Score *int `json:"score,omitempty"`
}

// ReachableOnly filters the list down to advisories with reachable call paths.
func ReachableOnly(vulns []*Vulnerability) []*Vulnerability {
	out := make([]*Vulnerability, 0, len(vulns))
	for _, v := range vulns {
		if v.Reachable {
			out = append(out, v)
		}
	}
	return out
}
