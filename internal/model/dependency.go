package model

// SeverityCounts tallies vulnerabilities per severity for one dependency.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the sum across all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Worst returns the highest severity with a non-zero count.
func (c SeverityCounts) Worst() Severity {
	switch {
	case c.Critical > 0:
		return SeverityCritical
	case c.High > 0:
		return SeverityHigh
	case c.Medium > 0:
		return SeverityMedium
	case c.Low > 0:
		return SeverityLow
	}
	return SeverityNone
}

// Add increments the count for the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// CountSeverities tallies the severities of the given vulnerabilities.
func CountSeverities(vulns []*Vulnerability) SeverityCounts {
	var c SeverityCounts
	for _, v := range vulns {
		c.Add(v.Severity)
	}
	return c
}

// Dependency is one package in a project's supply chain.
type Dependency struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Ecosystem Ecosystem `json:"ecosystem,omitempty"`
	License   string    `json:"license,omitempty"`

	// Direct is true when the project's manifest names this package;
	// transitive dependencies are pulled in by another dependency.
	Direct bool `json:"direct"`
	// DevOnly marks packages used only at build/test time.
	DevOnly bool `json:"dev_only,omitempty"`
	// Zombie marks packages present in the manifest but never referenced by
	// any source file.
	Zombie bool `json:"zombie,omitempty"`
	// Malicious marks packages flagged by the registry as actively hostile.
	Malicious bool `json:"malicious,omitempty"`
	// Reputation is a -1..1 registry trust adjustment (0 = neutral).
	Reputation float64 `json:"reputation,omitempty"`

	Counts SeverityCounts `json:"counts"`
}

// String renders the canonical name@version form.
func (d Dependency) String() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + "@" + d.Version
}
