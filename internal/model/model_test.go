package model

import "testing"

func TestSeverity_IsValid(t *testing.T) {
	for _, tc := range []struct {
		sev  Severity
		want bool
	}{
		{SeverityCritical, true},
		{SeverityHigh, true},
		{SeverityMedium, true},
		{SeverityLow, true},
		{SeverityNone, false},
		{Severity(""), false},
		{Severity("catastrophic"), false},
	} {
		if got := tc.sev.IsValid(); got != tc.want {
			t.Errorf("Severity(%q).IsValid() = %v, want %v", tc.sev, got, tc.want)
		}
	}
}

func TestSeverity_Rank(t *testing.T) {
	order := []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("Rank(%q) = %d should be below Rank(%q) = %d",
				order[i-1], order[i-1].Rank(), order[i], order[i].Rank())
		}
	}
	if got := Severity("bogus").Rank(); got != 0 {
		t.Errorf("unknown severity Rank() = %d, want 0", got)
	}
}

func TestParseSeverity(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Severity
	}{
		{"critical", SeverityCritical},
		{"high", SeverityHigh},
		{"medium", SeverityMedium},
		{"low", SeverityLow},
		{"none", SeverityNone},
		{"", SeverityNone},
		{"CRITICAL", SeverityNone},
	} {
		if got := ParseSeverity(tc.in); got != tc.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWorstSeverity(t *testing.T) {
	for _, tc := range []struct {
		sevs []Severity
		want Severity
	}{
		{nil, SeverityNone},
		{[]Severity{SeverityLow}, SeverityLow},
		{[]Severity{SeverityLow, SeverityHigh, SeverityMedium}, SeverityHigh},
		{[]Severity{SeverityCritical, SeverityLow}, SeverityCritical},
		{[]Severity{SeverityNone, SeverityNone}, SeverityNone},
	} {
		if got := WorstSeverity(tc.sevs...); got != tc.want {
			t.Errorf("WorstSeverity(%v) = %q, want %q", tc.sevs, got, tc.want)
		}
	}
}

func TestBracketForScore(t *testing.T) {
	for _, tc := range []struct {
		score int
		want  ScoreBracket
	}{
		{0, BracketHealthy},
		{24, BracketHealthy},
		{25, BracketLow},
		{49, BracketLow},
		{50, BracketModerate},
		{74, BracketModerate},
		{75, BracketUrgent},
		{100, BracketUrgent},
	} {
		if got := BracketForScore(tc.score); got != tc.want {
			t.Errorf("BracketForScore(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestAssetTier_Weight(t *testing.T) {
	for _, tc := range []struct {
		tier AssetTier
		want float64
	}{
		{TierCrownJewel, 1.0},
		{TierProduction, 0.85},
		{TierInternal, 0.7},
		{TierNonProduction, 0.5},
		{AssetTier(""), 0.85},
		{AssetTier("bogus"), 0.85},
	} {
		if got := tc.tier.Weight(); got != tc.want {
			t.Errorf("AssetTier(%q).Weight() = %v, want %v", tc.tier, got, tc.want)
		}
	}
}

func TestAssetTier_UnreachableDiscount(t *testing.T) {
	for _, tc := range []struct {
		tier AssetTier
		want float64
	}{
		{TierCrownJewel, 0.9},
		{TierProduction, 0.75},
		{TierInternal, 0.6},
		{TierNonProduction, 0.4},
		{AssetTier(""), 0.75},
	} {
		if got := tc.tier.UnreachableDiscount(); got != tc.want {
			t.Errorf("AssetTier(%q).UnreachableDiscount() = %v, want %v", tc.tier, got, tc.want)
		}
	}
}

func TestSeverityCounts(t *testing.T) {
	var c SeverityCounts
	if c.Total() != 0 || c.Worst() != SeverityNone {
		t.Errorf("zero counts: Total() = %d, Worst() = %q", c.Total(), c.Worst())
	}
	c.Add(SeverityLow)
	c.Add(SeverityLow)
	c.Add(SeverityMedium)
	if c.Total() != 3 {
		t.Errorf("Total() = %d, want 3", c.Total())
	}
	if got := c.Worst(); got != SeverityMedium {
		t.Errorf("Worst() = %q, want %q", got, SeverityMedium)
	}
	c.Add(SeverityCritical)
	if got := c.Worst(); got != SeverityCritical {
		t.Errorf("Worst() after critical = %q, want %q", got, SeverityCritical)
	}
	c.Add(SeverityNone) // aggregate severities are not counted
	if c.Total() != 4 {
		t.Errorf("Total() after Add(none) = %d, want 4", c.Total())
	}
}

func TestCountSeverities(t *testing.T) {
	vulns := []*Vulnerability{
		{ID: "CVE-2024-0001", Severity: SeverityHigh},
		{ID: "CVE-2024-0002", Severity: SeverityHigh},
		{ID: "CVE-2024-0003", Severity: SeverityLow},
	}
	c := CountSeverities(vulns)
	if c.High != 2 || c.Low != 1 || c.Critical != 0 || c.Medium != 0 {
		t.Errorf("CountSeverities = %+v, want {High:2 Low:1}", c)
	}
}

func TestDependency_String(t *testing.T) {
	for _, tc := range []struct {
		dep  Dependency
		want string
	}{
		{Dependency{Name: "lodash", Version: "4.17.21"}, "lodash@4.17.21"},
		{Dependency{Name: "left-pad"}, "left-pad"},
	} {
		if got := tc.dep.String(); got != tc.want {
			t.Errorf("Dependency.String() = %q, want %q", got, tc.want)
		}
	}
}

func TestReachableOnly(t *testing.T) {
	vulns := []*Vulnerability{
		{ID: "a", Reachable: true},
		{ID: "b", Reachable: false},
		{ID: "c", Reachable: true},
	}
	got := ReachableOnly(vulns)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("ReachableOnly kept %d entries, want [a c]", len(got))
	}
	if out := ReachableOnly(nil); len(out) != 0 {
		t.Errorf("ReachableOnly(nil) returned %d entries", len(out))
	}
}

func TestDependencyNode_WorstSeverity(t *testing.T) {
	tree := &DependencyNode{
		Dependency: Dependency{Name: "express", Version: "4.18.0"},
		Vulnerabilities: []*Vulnerability{
			{Severity: SeverityLow, Reachable: true},
		},
		Children: []*DependencyNode{
			{
				Dependency: Dependency{Name: "qs", Version: "6.5.0"},
				Vulnerabilities: []*Vulnerability{
					{Severity: SeverityCritical, Reachable: false},
					{Severity: SeverityMedium, Reachable: true},
				},
			},
		},
	}
	if got := tree.WorstSeverity(false); got != SeverityCritical {
		t.Errorf("WorstSeverity(false) = %q, want critical", got)
	}
	// The critical advisory is unreachable, so filtering drops it.
	if got := tree.WorstSeverity(true); got != SeverityMedium {
		t.Errorf("WorstSeverity(true) = %q, want medium", got)
	}
}

func TestProjectTree_Worst(t *testing.T) {
	tree := &ProjectTree{
		Center: Center{Name: "api-server", Kind: CenterProject},
		Vulnerabilities: []*Vulnerability{
			{Severity: SeverityHigh, Reachable: true},
		},
		Dependencies: []*DependencyNode{
			{Dependency: Dependency{Name: "lodash"}},
		},
	}
	if got := tree.Worst(false); got != SeverityHigh {
		t.Errorf("Worst(false) = %q, want high", got)
	}
	empty := &ProjectTree{Center: Center{Name: "clean", Kind: CenterProject}}
	if got := empty.Worst(false); got != SeverityNone {
		t.Errorf("empty tree Worst = %q, want none", got)
	}
}

func TestRole_IsValid(t *testing.T) {
	for _, tc := range []struct {
		role Role
		want bool
	}{
		{RoleOwner, true},
		{RoleAdmin, true},
		{RoleMember, true},
		{RoleViewer, true},
		{Role(""), false},
		{Role("superuser"), false},
	} {
		if got := tc.role.IsValid(); got != tc.want {
			t.Errorf("Role(%q).IsValid() = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestProject_EffectiveTierWeight(t *testing.T) {
	p := Project{Tier: TierInternal}
	if got := p.EffectiveTierWeight(); got != 0.7 {
		t.Errorf("EffectiveTierWeight() = %v, want 0.7", got)
	}
	custom := 0.95
	p.TierWeight = &custom
	if got := p.EffectiveTierWeight(); got != 0.95 {
		t.Errorf("EffectiveTierWeight() with override = %v, want 0.95", got)
	}
}

func TestPolicyAction_IsValid(t *testing.T) {
	for _, tc := range []struct {
		action PolicyAction
		want   bool
	}{
		{ActionWarn, true},
		{ActionBlock, true},
		{PolicyAction(""), false},
		{PolicyAction("quarantine"), false},
	} {
		if got := tc.action.IsValid(); got != tc.want {
			t.Errorf("PolicyAction(%q).IsValid() = %v, want %v", tc.action, got, tc.want)
		}
	}
}

func TestBumpPRStatus_IsValid(t *testing.T) {
	for _, tc := range []struct {
		status BumpPRStatus
		want   bool
	}{
		{BumpPending, true},
		{BumpOpen, true},
		{BumpMerged, true},
		{BumpClosed, true},
		{BumpFailed, true},
		{BumpPRStatus(""), false},
		{BumpPRStatus("abandoned"), false},
	} {
		if got := tc.status.IsValid(); got != tc.want {
			t.Errorf("BumpPRStatus(%q).IsValid() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestChatRole_IsValid(t *testing.T) {
	for _, tc := range []struct {
		role ChatRole
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{ChatRole(""), false},
		{ChatRole("system"), false},
	} {
		if got := tc.role.IsValid(); got != tc.want {
			t.Errorf("ChatRole(%q).IsValid() = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestEvent_ShortTopic(t *testing.T) {
	for _, tc := range []struct {
		topic string
		want  string
	}{
		{"deptex.policy.ban.created", "policy.ban.created"},
		{"deptex.graph.committed", "graph.committed"},
		{"custom.topic", "custom.topic"},
	} {
		e := &Event{Topic: tc.topic}
		if got := e.ShortTopic(); got != tc.want {
			t.Errorf("Event{Topic: %q}.ShortTopic() = %q, want %q", tc.topic, got, tc.want)
		}
	}
}
