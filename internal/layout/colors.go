package layout

import "github.com/deptexhq/deptex/internal/model"

// Edge stroke colors, one per severity, opacity graded so the ramp reads
// correctly even when edges overlap.
const (
	ColorCritical = "rgba(220, 38, 38, 0.95)"
	ColorHigh     = "rgba(234, 88, 12, 0.85)"
	ColorMedium   = "rgba(217, 119, 6, 0.75)"
	ColorLow      = "rgba(202, 138, 4, 0.65)"
	ColorNone     = "rgba(148, 163, 184, 0.40)"
)

// EdgeColor returns the stroke color for an edge whose target subtree has
// the given worst reachable severity.
func EdgeColor(worst model.Severity) string {
	switch worst {
	case model.SeverityCritical:
		return ColorCritical
	case model.SeverityHigh:
		return ColorHigh
	case model.SeverityMedium:
		return ColorMedium
	case model.SeverityLow:
		return ColorLow
	}
	return ColorNone
}
