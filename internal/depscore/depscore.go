// Package depscore computes the 0-100 composite risk score for a
// vulnerability finding. The score blends advisory impact (CVSS), exploit
// likelihood (EPSS, CISA KEV), environmental context (asset tier,
// reachability) and dependency context (transitivity, dev-only, malicious
// flags, registry reputation).
//
// Score is a pure function: identical inputs always produce identical
// output, and it performs no I/O.
package depscore

import (
	"math"

	"github.com/deptexhq/deptex/internal/model"
)

// Multipliers applied for dependency context.
const (
	kevThreat        = 1.2
	transitiveFactor = 0.75
	devOnlyFactor    = 0.4
	maliciousFactor  = 1.3
	reputationSwing  = 0.15
)

// Context carries every input to the score. Zero values are safe: an empty
// Context scores 0.
type Context struct {
	// CVSS is the advisory's base score, 0-10. Out-of-range values are
	// clamped.
	CVSS float64 `json:"cvss"`
	// EPSS is the advisory's exploit-prediction probability, 0-1.
	EPSS float64 `json:"epss"`
	// KEV is true when the advisory is in CISA's Known Exploited
	// Vulnerabilities catalog.
	KEV bool `json:"kev"`
	// Reachable is true when the vulnerable code path is invoked by the
	// consuming project.
	Reachable bool `json:"reachable"`

	// Tier is the owning project's asset-criticality tier.
	Tier model.AssetTier `json:"tier"`
	// TierWeight overrides Tier's fixed weight when non-nil.
	TierWeight *float64 `json:"tier_weight,omitempty"`

	// Transitive is true when the dependency is not named in the project's
	// own manifest.
	Transitive bool `json:"transitive"`
	// DevOnly is true when the dependency is used only at build/test time.
	DevOnly bool `json:"dev_only"`
	// Malicious is true when the package itself is flagged as hostile.
	Malicious bool `json:"malicious"`
	// Reputation is the -1..1 registry trust adjustment (0 = neutral).
	Reputation float64 `json:"reputation"`
}

// Score computes the composite risk score for the given context, an integer
// in [0, 100].
//
// base impact = CVSS x 10; threat = 1.2 when known-exploited, else
// 0.6 + 0.6*sqrt(EPSS); environment = tier weight x reachability weight,
// where the unreachable discount deepens as tier criticality drops. The
// product is then adjusted for dependency context, clamped and rounded.
func Score(ctx Context) int {
	base := clamp(ctx.CVSS, 0, 10) * 10

	threat := kevThreat
	if !ctx.KEV {
		threat = 0.6 + 0.6*math.Sqrt(clamp(ctx.EPSS, 0, 1))
	}

	tierWeight := ctx.Tier.Weight()
	if ctx.TierWeight != nil {
		tierWeight = *ctx.TierWeight
	}
	reachWeight := 1.0
	if !ctx.Reachable {
		reachWeight = ctx.Tier.UnreachableDiscount()
	}

	score := base * threat * tierWeight * reachWeight
	if ctx.Transitive {
		score *= transitiveFactor
	}
	if ctx.DevOnly {
		score *= devOnlyFactor
	}
	if ctx.Malicious {
		score *= maliciousFactor
	}
	if ctx.Reputation != 0 {
		score *= 1 + reputationSwing*clamp(ctx.Reputation, -1, 1)
	}

	return int(math.Round(clamp(score, 0, 100)))
}

// ForVulnerability builds the score context for an advisory found on a
// dependency of a project and computes its score. When the advisory already
// carries a platform-computed score, that value is returned unchanged.
func ForVulnerability(v *model.Vulnerability, dep *model.Dependency, project *model.Project) int {
	if v.Score != nil {
		return *v.Score
	}
	ctx := Context{
		CVSS:      v.CVSS,
		EPSS:      v.EPSS,
		KEV:       v.CISAKEV,
		Reachable: v.Reachable,
	}
	if project != nil {
		ctx.Tier = project.Tier
		ctx.TierWeight = project.TierWeight
	}
	if dep != nil {
		ctx.Transitive = !dep.Direct
		ctx.DevOnly = dep.DevOnly
		ctx.Malicious = dep.Malicious
		ctx.Reputation = dep.Reputation
	}
	return Score(ctx)
}

// Bracket maps a score onto its coarse health classification.
func Bracket(score int) model.ScoreBracket {
	return model.BracketForScore(score)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
