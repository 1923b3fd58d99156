package model

// Severity classifies a vulnerability advisory.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"

	// SeverityNone is the derived "no vulnerabilities" state. It is never a
	// valid advisory severity, only an aggregate.
	SeverityNone Severity = "none"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid checks whether the severity is a known advisory value.
// SeverityNone is an aggregate, not an advisory severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities for comparison: critical is highest (4), none is 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ParseSeverity normalizes a severity string from an external source.
// Unknown values map to SeverityNone.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	}
	return SeverityNone
}

// WorstSeverity returns the highest-ranked severity in the list, or
// SeverityNone for an empty list.
func WorstSeverity(sevs ...Severity) Severity {
	worst := SeverityNone
	for _, s := range sevs {
		if s.Rank() > worst.Rank() {
			worst = s
		}
	}
	return worst
}

// ScoreBracket is the coarse health classification derived from a depscore.
type ScoreBracket string

const (
	BracketHealthy  ScoreBracket = "healthy"
	BracketLow      ScoreBracket = "low"
	BracketModerate ScoreBracket = "moderate"
	BracketUrgent   ScoreBracket = "urgent"
)

// String returns the string representation of the bracket.
func (b ScoreBracket) String() string {
	return string(b)
}

// IsValid checks whether the bracket is a known value.
func (b ScoreBracket) IsValid() bool {
	switch b {
	case BracketHealthy, BracketLow, BracketModerate, BracketUrgent:
		return true
	}
	return false
}

// BracketForScore maps a 0-100 depscore onto its bracket.
func BracketForScore(score int) ScoreBracket {
	switch {
	case score < 25:
		return BracketHealthy
	case score < 50:
		return BracketLow
	case score < 75:
		return BracketModerate
	default:
		return BracketUrgent
	}
}

// AssetTier is an organization-configurable criticality ranking of a project,
// used to weight vulnerability severity in the depscore.
type AssetTier string

const (
	TierCrownJewel    AssetTier = "crown_jewel"
	TierProduction    AssetTier = "production"
	TierInternal      AssetTier = "internal"
	TierNonProduction AssetTier = "non_production"
)

// String returns the string representation of the tier.
func (t AssetTier) String() string {
	return string(t)
}

// IsValid checks whether the tier is a known value.
func (t AssetTier) IsValid() bool {
	switch t {
	case TierCrownJewel, TierProduction, TierInternal, TierNonProduction:
		return true
	}
	return false
}

// Weight returns the tier's environmental multiplier. Unknown tiers weigh
// like production.
func (t AssetTier) Weight() float64 {
	switch t {
	case TierCrownJewel:
		return 1.0
	case TierProduction:
		return 0.85
	case TierInternal:
		return 0.7
	case TierNonProduction:
		return 0.5
	}
	return 0.85
}

// UnreachableDiscount returns the multiplier applied to findings whose
// vulnerable code path is not reachable. The discount deepens as criticality
// drops: a crown-jewel asset barely discounts unreachable findings, a
// non-production asset discounts them heavily.
func (t AssetTier) UnreachableDiscount() float64 {
	switch t {
	case TierCrownJewel:
		return 0.9
	case TierProduction:
		return 0.75
	case TierInternal:
		return 0.6
	case TierNonProduction:
		return 0.4
	}
	return 0.75
}

// Ecosystem identifies a package registry. The set is open; these are the
// common values the platform recognizes.
type Ecosystem string

const (
	EcosystemNpm   Ecosystem = "npm"
	EcosystemPyPI  Ecosystem = "pypi"
	EcosystemGo    Ecosystem = "go"
	EcosystemMaven Ecosystem = "maven"
	EcosystemCargo Ecosystem = "cargo"
)

// String returns the string representation of the ecosystem.
func (e Ecosystem) String() string {
	return string(e)
}
