package policy

import (
	"testing"
	"time"

	"github.com/deptexhq/deptex/internal/model"
)

var evalNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func dep(name, version string) *model.Dependency {
	return &model.Dependency{Name: name, Version: version, Ecosystem: model.EcosystemNpm}
}

func ban(id, pkg, rng string) *model.BannedVersion {
	return &model.BannedVersion{
		ID: id, OrgID: "org-1", Package: pkg, Ecosystem: model.EcosystemNpm,
		Range: rng, Action: model.ActionBlock,
	}
}

func TestMatches(t *testing.T) {
	for _, tc := range []struct {
		name string
		ban  *model.BannedVersion
		dep  *model.Dependency
		want bool
	}{
		{"ExactVersion", ban("ban-1", "event-stream", "3.3.6"), dep("event-stream", "3.3.6"), true},
		{"OtherVersion", ban("ban-1", "event-stream", "3.3.6"), dep("event-stream", "3.3.5"), false},
		{"WildcardStar", ban("ban-1", "event-stream", "*"), dep("event-stream", "1.0.0"), true},
		{"WildcardEmpty", ban("ban-1", "event-stream", ""), dep("event-stream", "1.0.0"), true},
		{"OtherPackage", ban("ban-1", "event-stream", "*"), dep("lodash", "4.17.20"), false},
		{"ConstraintExpressionNeverMatchesLocally", ban("ban-1", "event-stream", ">=3.0.0 <4.0.0"), dep("event-stream", "3.3.6"), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Matches(tc.ban, tc.dep, evalNow); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatches_EcosystemScoping(t *testing.T) {
	b := ban("ban-1", "requests", "2.19.0")
	b.Ecosystem = model.EcosystemPyPI

	d := dep("requests", "2.19.0")
	d.Ecosystem = model.EcosystemNpm
	if Matches(b, d, evalNow) {
		t.Error("expected no match across ecosystems")
	}

	// An unscoped side matches either way.
	d.Ecosystem = ""
	if !Matches(b, d, evalNow) {
		t.Error("expected match when dependency ecosystem is unknown")
	}
	b.Ecosystem = ""
	d.Ecosystem = model.EcosystemNpm
	if !Matches(b, d, evalNow) {
		t.Error("expected match when ban ecosystem is unscoped")
	}
}

func TestMatches_ExpiredAndSuperseded(t *testing.T) {
	past := evalNow.Add(-time.Hour)
	b := ban("ban-1", "event-stream", "3.3.6")
	b.ExpiresAt = &past
	if Matches(b, dep("event-stream", "3.3.6"), evalNow) {
		t.Error("expected expired ban not to match")
	}

	b = ban("ban-2", "event-stream", "3.3.6")
	b.Superseded = true
	if Matches(b, dep("event-stream", "3.3.6"), evalNow) {
		t.Error("expected superseded ban not to match")
	}
}

func TestBannedSet(t *testing.T) {
	deps := []*model.Dependency{
		dep("event-stream", "3.3.6"),
		dep("lodash", "4.17.20"),
		dep("express", "4.18.0"),
	}
	bans := []*model.BannedVersion{
		ban("ban-1", "event-stream", "3.3.6"),
		ban("ban-2", "event-stream", "*"), // second match must not duplicate
		ban("ban-3", "lodash", "4.17.20"),
	}

	set := BannedSet(deps, bans, evalNow)
	if len(set) != 2 {
		t.Fatalf("expected 2 banned keys, got %d: %v", len(set), set)
	}
	if !set["event-stream@3.3.6"] || !set["lodash@4.17.20"] {
		t.Fatalf("got %v", set)
	}
}

func TestEvaluate(t *testing.T) {
	deps := []*model.Dependency{
		dep("event-stream", "3.3.6"),
		dep("express", "4.18.0"),
	}
	deps[0].Direct = true
	bans := []*model.BannedVersion{ban("ban-1", "event-stream", "3.3.6")}

	violations := Evaluate("prj-1", deps, bans, nil, evalNow)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.ID != "" {
		t.Errorf("expected no id before persistence, got %q", v.ID)
	}
	if v.BanID != "ban-1" || v.OrgID != "org-1" || v.ProjectID != "prj-1" {
		t.Errorf("got ban=%q org=%q project=%q", v.BanID, v.OrgID, v.ProjectID)
	}
	if v.Package != "event-stream" || v.Version != "3.3.6" {
		t.Errorf("got %s@%s", v.Package, v.Version)
	}
	if !v.Direct || v.Action != model.ActionBlock || v.Excepted {
		t.Errorf("got direct=%v action=%q excepted=%v", v.Direct, v.Action, v.Excepted)
	}
	if !v.DetectedAt.Equal(evalNow) {
		t.Errorf("got detected_at=%v", v.DetectedAt)
	}
}

func TestEvaluate_Exceptions(t *testing.T) {
	deps := []*model.Dependency{dep("event-stream", "3.3.6")}
	bans := []*model.BannedVersion{ban("ban-1", "event-stream", "3.3.6")}
	future := evalNow.Add(24 * time.Hour)
	past := evalNow.Add(-time.Hour)

	for _, tc := range []struct {
		name      string
		exception *model.PolicyException
		want      bool
	}{
		{"ActiveForProject", &model.PolicyException{BanID: "ban-1", ProjectID: "prj-1", ExpiresAt: &future}, true},
		{"NoExpiry", &model.PolicyException{BanID: "ban-1", ProjectID: "prj-1"}, true},
		{"OtherProject", &model.PolicyException{BanID: "ban-1", ProjectID: "prj-2"}, false},
		{"OtherBan", &model.PolicyException{BanID: "ban-9", ProjectID: "prj-1"}, false},
		{"Expired", &model.PolicyException{BanID: "ban-1", ProjectID: "prj-1", ExpiresAt: &past}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			violations := Evaluate("prj-1", deps, bans, []*model.PolicyException{tc.exception}, evalNow)
			if len(violations) != 1 {
				t.Fatalf("expected 1 violation, got %d", len(violations))
			}
			if violations[0].Excepted != tc.want {
				t.Errorf("excepted = %v, want %v", violations[0].Excepted, tc.want)
			}
		})
	}
}

func TestEvaluate_MultipleBansSameDependency(t *testing.T) {
	deps := []*model.Dependency{dep("event-stream", "3.3.6")}
	bans := []*model.BannedVersion{
		ban("ban-1", "event-stream", "3.3.6"),
		ban("ban-2", "event-stream", "*"),
	}

	violations := Evaluate("prj-1", deps, bans, nil, evalNow)
	if len(violations) != 2 {
		t.Fatalf("expected one violation per matching ban, got %d", len(violations))
	}
	if violations[0].BanID == violations[1].BanID {
		t.Error("expected distinct ban ids")
	}
}

func TestEvaluate_NoBans(t *testing.T) {
	deps := []*model.Dependency{dep("event-stream", "3.3.6")}
	if violations := Evaluate("prj-1", deps, nil, nil, evalNow); violations != nil {
		t.Fatalf("expected nil, got %v", violations)
	}
}
