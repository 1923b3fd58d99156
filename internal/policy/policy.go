// Package policy evaluates organization ban lists against project
// dependencies and keeps violation records current as bans, exceptions,
// and advisories change.
package policy

import (
	"time"

	"github.com/deptexhq/deptex/internal/model"
)

// Matches reports whether a ban applies to a dependency. The ban's range is
// the backend's native constraint string; the gateway decides only the forms
// it can match verbatim: empty or "*" covers every version, anything else is
// compared as an exact version string. Constraint expressions the backend
// would expand (">=1.0 <2.0") never match here; the backend's own tree
// annotations stay authoritative for those.
func Matches(b *model.BannedVersion, dep *model.Dependency, now time.Time) bool {
	if b.Superseded || b.Expired(now) {
		return false
	}
	if b.Package != dep.Name {
		return false
	}
	if b.Ecosystem != "" && dep.Ecosystem != "" && b.Ecosystem != dep.Ecosystem {
		return false
	}
	switch b.Range {
	case "", "*":
		return true
	default:
		return b.Range == dep.Version
	}
}

// BannedSet returns the name@version keys of dependencies matched by an
// active ban, in the shape the layout annotator consumes.
func BannedSet(deps []*model.Dependency, bans []*model.BannedVersion, now time.Time) map[string]bool {
	set := make(map[string]bool)
	for _, dep := range deps {
		for _, b := range bans {
			if Matches(b, dep, now) {
				set[dep.String()] = true
				break
			}
		}
	}
	return set
}

// Evaluate computes the violations a project's dependency list incurs under
// the given bans. Exceptions do not suppress a violation; they mark it
// excepted so warn/block handling downstream can tell the difference.
// Violations are returned without ids; the caller assigns them on first
// persistence.
func Evaluate(projectID string, deps []*model.Dependency, bans []*model.BannedVersion, exceptions []*model.PolicyException, now time.Time) []*model.Violation {
	excepted := make(map[string]bool, len(exceptions))
	for _, e := range exceptions {
		if e.ProjectID == projectID && e.Active(now) {
			excepted[e.BanID] = true
		}
	}

	var out []*model.Violation
	for _, dep := range deps {
		for _, b := range bans {
			if !Matches(b, dep, now) {
				continue
			}
			out = append(out, &model.Violation{
				BanID:      b.ID,
				OrgID:      b.OrgID,
				ProjectID:  projectID,
				Package:    dep.Name,
				Version:    dep.Version,
				Direct:     dep.Direct,
				Action:     b.Action,
				Excepted:   excepted[b.ID],
				DetectedAt: now,
			})
		}
	}
	return out
}
