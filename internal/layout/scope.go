package layout

import (
	"math"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/model"
)

// Scope rings are wide enough that a full project subtree (direct ring,
// transitive ring, vulnerability fans) fits inside one slot without
// overlapping its neighbors.
const (
	teamRingMin  = 1800.0
	teamRingBase = 1500.0
	teamRingStep = 160.0

	orgRingMin  = 4200.0
	orgRingBase = 3600.0
	orgRingStep = 360.0
)

// Team lays out a team-scoped graph: the team at the origin, each member
// project's full subtree built by the project builder, translated onto a
// golden-angle ring slot, and re-namespaced so merged id sets stay disjoint.
func Team(tree *model.TeamTree, opts Options) canvas.Graph {
	g := canvas.Graph{
		Scope: "team:" + scopeKey(tree.TeamID, tree.Center.Name),
		Nodes: []canvas.Node{},
		Edges: []canvas.Edge{},
	}

	center := canvas.NewNode("center", canvas.NodeCenter, canvas.Position{}, canvas.NodeData{
		Label:    tree.Center.Name,
		Severity: tree.Worst(opts.ReachableOnly),
		Icon:     tree.Center.Icon,
	})
	g.Nodes = append(g.Nodes, center)

	n := len(tree.Projects)
	radius := math.Max(teamRingMin, teamRingBase+float64(n)*teamRingStep)
	for i, p := range tree.Projects {
		angle := startAngle + float64(i)*goldenAngle
		pos := polar(canvas.Position{}, radius, angle)
		sub := Project(p, opts)
		prefix := "prj-" + scopeKey(p.ProjectID, p.Center.Name) + ":"
		mergeSubgraph(&g, sub, prefix, pos, canvas.NodeProject)

		hp := HandleFor(angle)
		g.Edges = append(g.Edges, canvas.Edge{
			ID:           "e:center->" + prefix + "center",
			Source:       "center",
			Target:       prefix + "center",
			SourceHandle: hp.Source,
			TargetHandle: hp.Target,
			Color:        EdgeColor(p.Worst(true)),
			Animated:     sub.Stats.Vulnerabilities > 0,
		})
	}

	g.Stats = statsFor(&g, tree.Worst(opts.ReachableOnly))
	return g
}

// Org lays out an organization-scoped graph: the same algorithm one level
// up, with each team subtree built by Team and re-namespaced per team.
func Org(tree *model.OrgTree, opts Options) canvas.Graph {
	g := canvas.Graph{
		Scope: "org:" + scopeKey(tree.OrganizationID, tree.Center.Name),
		Nodes: []canvas.Node{},
		Edges: []canvas.Edge{},
	}

	center := canvas.NewNode("center", canvas.NodeCenter, canvas.Position{}, canvas.NodeData{
		Label:    tree.Center.Name,
		Severity: tree.Worst(opts.ReachableOnly),
		Icon:     tree.Center.Icon,
	})
	g.Nodes = append(g.Nodes, center)

	n := len(tree.Teams)
	radius := math.Max(orgRingMin, orgRingBase+float64(n)*orgRingStep)
	for i, tm := range tree.Teams {
		angle := startAngle + float64(i)*goldenAngle
		pos := polar(canvas.Position{}, radius, angle)
		sub := Team(tm, opts)
		prefix := "team-" + scopeKey(tm.TeamID, tm.Center.Name) + ":"
		mergeSubgraph(&g, sub, prefix, pos, canvas.NodeTeam)

		hp := HandleFor(angle)
		g.Edges = append(g.Edges, canvas.Edge{
			ID:           "e:center->" + prefix + "center",
			Source:       "center",
			Target:       prefix + "center",
			SourceHandle: hp.Source,
			TargetHandle: hp.Target,
			Color:        EdgeColor(tm.Worst(true)),
			Animated:     sub.Stats.Vulnerabilities > 0,
		})
	}

	g.Stats = statsFor(&g, tree.Worst(opts.ReachableOnly))
	return g
}

// mergeSubgraph copies a child scope's nodes and edges into dst, shifting
// every position by the ring slot and prefixing every id. The child's own
// center node is retyped so it renders as a member, not a focal node.
func mergeSubgraph(dst *canvas.Graph, sub canvas.Graph, prefix string, offset canvas.Position, centerType canvas.NodeType) {
	for _, node := range sub.Nodes {
		if node.ID == "center" && node.Type == canvas.NodeCenter {
			node.Type = centerType
			node.Width, node.Height = canvas.NodeSize(centerType)
		}
		node.ID = prefix + node.ID
		node.Position.X += offset.X
		node.Position.Y += offset.Y
		dst.Nodes = append(dst.Nodes, node)
	}
	for _, edge := range sub.Edges {
		edge.ID = prefix + edge.ID
		edge.Source = prefix + edge.Source
		edge.Target = prefix + edge.Target
		dst.Edges = append(dst.Edges, edge)
	}
	dst.Stats.Dependencies += sub.Stats.Dependencies
	dst.Stats.Vulnerabilities += sub.Stats.Vulnerabilities
}

func statsFor(g *canvas.Graph, worst model.Severity) canvas.Stats {
	s := g.Stats
	s.Nodes = len(g.Nodes)
	s.Edges = len(g.Edges)
	s.Worst = worst
	return s
}

func scopeKey(id, name string) string {
	if id != "" {
		return id
	}
	return name
}
