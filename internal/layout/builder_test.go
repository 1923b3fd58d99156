package layout

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/model"
)

func vuln(id string, sev model.Severity, reachable bool) *model.Vulnerability {
	return &model.Vulnerability{ID: id, Severity: sev, Reachable: reachable}
}

func depNode(name, version string, vulns []*model.Vulnerability, children ...*model.DependencyNode) *model.DependencyNode {
	return &model.DependencyNode{
		Dependency:      model.Dependency{Name: name, Version: version, Direct: true},
		Vulnerabilities: vulns,
		Children:        children,
	}
}

func sampleTree() *model.ProjectTree {
	return &model.ProjectTree{
		ProjectID: "prj_api",
		Center:    model.Center{Name: "api-server", Version: "1.4.0", Kind: model.CenterProject},
		Dependencies: []*model.DependencyNode{
			depNode("express", "4.18.0",
				[]*model.Vulnerability{vuln("CVE-2024-1001", model.SeverityHigh, true)},
				depNode("qs", "6.5.0", []*model.Vulnerability{
					vuln("CVE-2024-1002", model.SeverityCritical, false),
					vuln("CVE-2024-1003", model.SeverityMedium, true),
				}),
				depNode("cookie", "0.4.0", nil),
			),
			depNode("lodash", "4.17.21", []*model.Vulnerability{
				vuln("CVE-2024-1004", model.SeverityLow, true),
			}),
			depNode("left-pad", "1.3.0", nil),
		},
	}
}

func nodeByID(t *testing.T, g canvas.Graph, id string) canvas.Node {
	t.Helper()
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %q not found in graph", id)
	return canvas.Node{}
}

func nodeIDs(g canvas.Graph) map[string]bool {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	return ids
}

func TestProject_EmptyTree(t *testing.T) {
	g := Project(&model.ProjectTree{
		Center: model.Center{Name: "empty-app", Kind: model.CenterProject},
	}, Options{})
	if len(g.Nodes) != 1 {
		t.Fatalf("empty tree produced %d nodes, want 1", len(g.Nodes))
	}
	if g.Nodes[0].Type != canvas.NodeCenter {
		t.Errorf("lone node type = %q, want center", g.Nodes[0].Type)
	}
	if len(g.Edges) != 0 {
		t.Errorf("empty tree produced %d edges, want 0", len(g.Edges))
	}
	if g.Stats.Worst != model.SeverityNone {
		t.Errorf("empty tree worst = %q, want none", g.Stats.Worst)
	}
}

func TestProject_CenterVulnFanOnly(t *testing.T) {
	g := Project(&model.ProjectTree{
		Center: model.Center{Name: "api-server", Kind: model.CenterProject},
		Vulnerabilities: []*model.Vulnerability{
			vuln("CVE-2024-2001", model.SeverityHigh, true),
			vuln("CVE-2024-2002", model.SeverityLow, true),
		},
	}, Options{})
	if len(g.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3 (center + 2 advisories)", len(g.Nodes))
	}
	if len(g.Edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(g.Edges))
	}
	depCount := 0
	for _, n := range g.Nodes {
		if n.Type == canvas.NodeDependency {
			depCount++
		}
	}
	if depCount != 0 {
		t.Errorf("got %d dependency nodes, want 0", depCount)
	}
	for _, e := range g.Edges {
		if e.Source != "center" {
			t.Errorf("edge %q source = %q, want center", e.ID, e.Source)
		}
		if !e.Animated {
			t.Errorf("edge %q carrying an advisory should be animated", e.ID)
		}
	}
}

// A package center with one critical advisory and no children renders two
// nodes joined by one animated critical edge.
func TestProject_SingleCriticalAdvisory(t *testing.T) {
	g := Project(&model.ProjectTree{
		Center: model.Center{Name: "lodash", Version: "4.17.21", Kind: model.CenterPackage},
		Vulnerabilities: []*model.Vulnerability{
			vuln("GHSA-35jh-r3h4-6jhm", model.SeverityCritical, true),
		},
	}, Options{})
	if len(g.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(g.Nodes))
	}
	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(g.Edges))
	}
	e := g.Edges[0]
	if e.Color != ColorCritical {
		t.Errorf("edge color = %q, want %q", e.Color, ColorCritical)
	}
	if !e.Animated {
		t.Error("advisory edge should be animated")
	}
	if g.Stats.Worst != model.SeverityCritical {
		t.Errorf("stats worst = %q, want critical", g.Stats.Worst)
	}
}

func TestProject_Deterministic(t *testing.T) {
	a := Project(sampleTree(), Options{})
	b := Project(sampleTree(), Options{})
	if !reflect.DeepEqual(a, b) {
		t.Error("two builds from identical input differ")
	}
}

func TestProject_ReachableOnlyToggle(t *testing.T) {
	tree := func() *model.ProjectTree {
		return &model.ProjectTree{
			Center: model.Center{Name: "api-server", Kind: model.CenterProject},
			Dependencies: []*model.DependencyNode{
				depNode("qs", "6.5.0", []*model.Vulnerability{
					vuln("CVE-2024-3001", model.SeverityHigh, true),
					vuln("CVE-2024-3002", model.SeverityCritical, false),
				}),
			},
		}
	}

	all := Project(tree(), Options{})
	if len(all.Nodes) != 4 || len(all.Edges) != 3 {
		t.Fatalf("unfiltered: %d nodes / %d edges, want 4 / 3", len(all.Nodes), len(all.Edges))
	}

	reachable := Project(tree(), Options{ReachableOnly: true})
	if len(reachable.Nodes) != 3 || len(reachable.Edges) != 2 {
		t.Fatalf("filtered: %d nodes / %d edges, want 3 / 2", len(reachable.Nodes), len(reachable.Edges))
	}

	// Exactly the unreachable advisory's node disappeared.
	removed := []string{}
	filtered := nodeIDs(reachable)
	for id := range nodeIDs(all) {
		if !filtered[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) != 1 || !strings.Contains(removed[0], "CVE-2024-3002") {
		t.Errorf("removed nodes = %v, want just the unreachable advisory", removed)
	}

	// The dependency node stays, counting only reachable advisories now.
	depID := "center/dep:qs@6.5.0"
	n := nodeByID(t, reachable, depID)
	if n.Data.Counts.Total() != 1 || n.Data.Counts.High != 1 || n.Data.Counts.Critical != 0 {
		t.Errorf("filtered counts = %+v, want exactly one high", n.Data.Counts)
	}
	if n.Data.Severity != model.SeverityHigh {
		t.Errorf("filtered severity = %q, want high", n.Data.Severity)
	}

	// Edge color tracks worst reachable severity, so it is identical in
	// both modes.
	for _, g := range []canvas.Graph{all, reachable} {
		for _, e := range g.Edges {
			if e.Target == depID && e.Color != ColorHigh {
				t.Errorf("center edge color = %q, want %q", e.Color, ColorHigh)
			}
		}
	}
}

func TestProject_DirectRing(t *testing.T) {
	for _, tc := range []struct {
		n      int
		radius float64
	}{
		{1, 320},
		{2, 336},
		{5, 420},
	} {
		tree := &model.ProjectTree{Center: model.Center{Name: "ring-app", Kind: model.CenterProject}}
		for i := 0; i < tc.n; i++ {
			tree.Dependencies = append(tree.Dependencies,
				depNode("pkg-"+string(rune('a'+i)), "1.0.0", nil))
		}
		g := Project(tree, Options{})
		for _, n := range g.Nodes {
			if n.Type != canvas.NodeDependency {
				continue
			}
			dist := math.Hypot(n.Position.X, n.Position.Y)
			if math.Abs(dist-tc.radius) > 1e-6 {
				t.Errorf("n=%d: node %q at distance %v, want %v", tc.n, n.ID, dist, tc.radius)
			}
		}
	}
}

func TestProject_TransitiveFan(t *testing.T) {
	parent := depNode("express", "4.18.0", nil,
		depNode("qs", "6.5.0", nil),
		depNode("cookie", "0.4.0", nil),
		depNode("accepts", "1.3.8", nil),
		depNode("send", "0.18.0", nil),
	)
	g := Project(&model.ProjectTree{
		Center:       model.Center{Name: "api-server", Kind: model.CenterProject},
		Dependencies: []*model.DependencyNode{parent},
	}, Options{})

	parentAngle := startAngle
	ring := 320 + transitiveOffset
	arc := math.Min(transitiveArcMax, transitiveArcPer*4)
	for _, n := range g.Nodes {
		if n.Type != canvas.NodeDependency || !strings.Contains(n.ID, "express@4.18.0/dep:") {
			continue
		}
		dist := math.Hypot(n.Position.X, n.Position.Y)
		if dist < ring*(1-transitiveRadiusJitter)-1e-6 || dist > ring*(1+transitiveRadiusJitter)+1e-6 {
			t.Errorf("child %q at distance %v, want within %v ± 10%%", n.ID, dist, ring)
		}
		angle := math.Atan2(n.Position.Y, n.Position.X)
		diff := math.Abs(angleDiff(angle, parentAngle))
		if diff > arc/2+transitiveAngleJitter+1e-6 {
			t.Errorf("child %q at %v rad off parent angle, want within %v", n.ID, diff, arc/2+transitiveAngleJitter)
		}
	}
}

// angleDiff returns the signed smallest difference between two angles.
func angleDiff(a, b float64) float64 {
	d := normalizeAngle(a - b)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}

func TestProject_ZombieAndBanned(t *testing.T) {
	zombie := depNode("moment", "2.29.0", nil)
	zombie.Dependency.Zombie = true
	g := Project(&model.ProjectTree{
		Center:       model.Center{Name: "api-server", Kind: model.CenterProject},
		Dependencies: []*model.DependencyNode{zombie, depNode("event-stream", "3.3.6", nil)},
	}, Options{Banned: map[string]bool{"event-stream@3.3.6": true}})

	z := nodeByID(t, g, "center/dep:moment@2.29.0")
	if !z.Data.Zombie || z.Data.Opacity != zombieOpacity {
		t.Errorf("zombie node data = %+v, want zombie with opacity %v", z.Data, zombieOpacity)
	}
	b := nodeByID(t, g, "center/dep:event-stream@3.3.6")
	if !b.Data.Banned {
		t.Error("banned dependency not flagged")
	}
	if b.Data.Opacity != 0 {
		t.Errorf("non-zombie opacity = %v, want unset", b.Data.Opacity)
	}
}

func TestProject_DuplicatePackagesDisambiguated(t *testing.T) {
	g := Project(&model.ProjectTree{
		Center: model.Center{Name: "api-server", Kind: model.CenterProject},
		Dependencies: []*model.DependencyNode{
			depNode("qs", "6.5.0", nil),
			depNode("qs", "6.5.0", nil),
		},
	}, Options{})
	ids := nodeIDs(g)
	if len(ids) != len(g.Nodes) {
		t.Fatalf("node ids not unique: %d ids for %d nodes", len(ids), len(g.Nodes))
	}
	if !ids["center/dep:qs@6.5.0"] || !ids["center/dep:qs@6.5.0#2"] {
		t.Errorf("expected ordinal disambiguation, got ids %v", ids)
	}
}

func TestProject_UnreachableAdvisoryEdge(t *testing.T) {
	g := Project(&model.ProjectTree{
		Center: model.Center{Name: "api-server", Kind: model.CenterProject},
		Dependencies: []*model.DependencyNode{
			depNode("qs", "6.5.0", []*model.Vulnerability{
				vuln("CVE-2024-4001", model.SeverityCritical, false),
			}),
		},
	}, Options{})
	for _, e := range g.Edges {
		if strings.Contains(e.Target, "CVE-2024-4001") {
			if e.Color != ColorNone {
				t.Errorf("unreachable advisory edge color = %q, want gray", e.Color)
			}
			if !e.Animated {
				t.Error("advisory edge should be animated even when unreachable")
			}
		}
		if e.Target == "center/dep:qs@6.5.0" && e.Color != ColorNone {
			// No reachable advisory in the subtree, so the parent edge is
			// gray too.
			t.Errorf("dependency edge color = %q, want gray", e.Color)
		}
	}
}

func TestProject_Stats(t *testing.T) {
	g := Project(sampleTree(), Options{})
	if g.Stats.Dependencies != 5 {
		t.Errorf("stats dependencies = %d, want 5", g.Stats.Dependencies)
	}
	if g.Stats.Vulnerabilities != 4 {
		t.Errorf("stats vulnerabilities = %d, want 4", g.Stats.Vulnerabilities)
	}
	if g.Stats.Nodes != len(g.Nodes) || g.Stats.Edges != len(g.Edges) {
		t.Errorf("stats counts %d/%d disagree with slices %d/%d",
			g.Stats.Nodes, g.Stats.Edges, len(g.Nodes), len(g.Edges))
	}
	if g.Stats.Worst != model.SeverityCritical {
		t.Errorf("stats worst = %q, want critical", g.Stats.Worst)
	}
	if g.Scope != "project:prj_api" {
		t.Errorf("scope = %q, want project:prj_api", g.Scope)
	}
}

func TestTeam_DisjointNamespaces(t *testing.T) {
	shared := func() *model.DependencyNode {
		return depNode("qs", "6.5.0", []*model.Vulnerability{
			vuln("CVE-2024-5001", model.SeverityHigh, true),
		})
	}
	team := &model.TeamTree{
		TeamID: "team_core",
		Center: model.Center{Name: "core", Kind: model.CenterTeam},
		Projects: []*model.ProjectTree{
			{
				ProjectID:    "prj_a",
				Center:       model.Center{Name: "svc-a", Kind: model.CenterProject},
				Dependencies: []*model.DependencyNode{shared()},
			},
			{
				ProjectID:    "prj_b",
				Center:       model.Center{Name: "svc-b", Kind: model.CenterProject},
				Dependencies: []*model.DependencyNode{shared()},
			},
		},
	}
	g := Team(team, Options{})

	ids := nodeIDs(g)
	if len(ids) != len(g.Nodes) {
		t.Fatalf("node ids not unique: %d ids for %d nodes", len(ids), len(g.Nodes))
	}
	var aIDs, bIDs []string
	for id := range ids {
		if strings.HasPrefix(id, "prj-prj_a:") {
			aIDs = append(aIDs, id)
		}
		if strings.HasPrefix(id, "prj-prj_b:") {
			bIDs = append(bIDs, id)
		}
	}
	// Both subtrees contain the same package, yet their id sets are
	// disjoint by prefix. 1 team center + 2 subtrees of 3.
	if len(aIDs) != 3 || len(bIDs) != 3 || len(g.Nodes) != 7 {
		t.Errorf("subtree sizes a=%d b=%d total=%d, want 3/3/7", len(aIDs), len(bIDs), len(g.Nodes))
	}

	// Project centers render as project nodes at team scope.
	pc := nodeByID(t, g, "prj-prj_a:center")
	if pc.Type != canvas.NodeProject {
		t.Errorf("project center type = %q, want project", pc.Type)
	}
	// The team's focal node keeps the center type.
	if nodeByID(t, g, "center").Type != canvas.NodeCenter {
		t.Error("team focal node should be a center node")
	}
}

func TestTeam_EdgeColorPerProject(t *testing.T) {
	team := &model.TeamTree{
		TeamID: "team_core",
		Center: model.Center{Name: "core", Kind: model.CenterTeam},
		Projects: []*model.ProjectTree{
			{
				ProjectID: "prj_hot",
				Center:    model.Center{Name: "svc-hot", Kind: model.CenterProject},
				Dependencies: []*model.DependencyNode{
					depNode("qs", "6.5.0", []*model.Vulnerability{
						vuln("CVE-2024-6001", model.SeverityCritical, true),
					}),
				},
			},
			{
				ProjectID: "prj_clean",
				Center:    model.Center{Name: "svc-clean", Kind: model.CenterProject},
			},
		},
	}
	g := Team(team, Options{})
	for _, e := range g.Edges {
		switch e.Target {
		case "prj-prj_hot:center":
			if e.Color != ColorCritical || !e.Animated {
				t.Errorf("hot project edge = %+v, want animated critical", e)
			}
		case "prj-prj_clean:center":
			if e.Color != ColorNone || e.Animated {
				t.Errorf("clean project edge = %+v, want static gray", e)
			}
		}
	}
}

func TestOrg_TwoLevels(t *testing.T) {
	org := &model.OrgTree{
		OrganizationID: "org_acme",
		Center:         model.Center{Name: "acme", Kind: model.CenterOrganization},
		Teams: []*model.TeamTree{
			{
				TeamID: "team_one",
				Center: model.Center{Name: "one", Kind: model.CenterTeam},
				Projects: []*model.ProjectTree{
					{
						ProjectID: "prj_x",
						Center:    model.Center{Name: "svc-x", Kind: model.CenterProject},
						Dependencies: []*model.DependencyNode{
							depNode("lodash", "4.17.21", []*model.Vulnerability{
								vuln("CVE-2024-7001", model.SeverityMedium, true),
							}),
						},
					},
				},
			},
			{
				TeamID: "team_two",
				Center: model.Center{Name: "two", Kind: model.CenterTeam},
			},
		},
	}
	g := Org(org, Options{})

	ids := nodeIDs(g)
	if len(ids) != len(g.Nodes) {
		t.Fatalf("node ids not unique: %d ids for %d nodes", len(ids), len(g.Nodes))
	}
	// org center + team_one subtree (team center + project center + dep +
	// vuln) + team_two subtree (team center only).
	if len(g.Nodes) != 6 {
		t.Errorf("got %d nodes, want 6", len(g.Nodes))
	}
	if nodeByID(t, g, "team-team_one:center").Type != canvas.NodeTeam {
		t.Error("team center should render as a team node at org scope")
	}
	if nodeByID(t, g, "team-team_one:prj-prj_x:center").Type != canvas.NodeProject {
		t.Error("project center should render as a project node at org scope")
	}
	if g.Stats.Dependencies != 1 || g.Stats.Vulnerabilities != 1 {
		t.Errorf("stats = %+v, want 1 dependency / 1 vulnerability", g.Stats)
	}
	if g.Stats.Worst != model.SeverityMedium {
		t.Errorf("stats worst = %q, want medium", g.Stats.Worst)
	}
	if g.Scope != "org:org_acme" {
		t.Errorf("scope = %q, want org:org_acme", g.Scope)
	}
}

func TestOrg_Deterministic(t *testing.T) {
	build := func() canvas.Graph {
		return Org(&model.OrgTree{
			OrganizationID: "org_acme",
			Center:         model.Center{Name: "acme", Kind: model.CenterOrganization},
			Teams: []*model.TeamTree{
				{
					TeamID:   "team_one",
					Center:   model.Center{Name: "one", Kind: model.CenterTeam},
					Projects: []*model.ProjectTree{sampleTree()},
				},
			},
		}, Options{})
	}
	if !reflect.DeepEqual(build(), build()) {
		t.Error("two org builds from identical input differ")
	}
}
