package layout

import (
	"fmt"
	"math"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/model"
)

// Ring geometry. Direct dependencies sit on a ring whose radius grows with
// the child count; transitive children sit on outer rings fanned around
// their parent's angle; vulnerability leaves fan outward from their owner.
const (
	ringMin  = 320.0
	ringBase = 280.0
	ringStep = 28.0

	transitiveOffset       = 260.0
	transitiveArcMax       = math.Pi / 3
	transitiveArcPer       = 0.35
	transitiveAngleJitter  = 0.12
	transitiveRadiusJitter = 0.10

	vulnOffsetDep    = 150.0
	vulnOffsetCenter = 180.0
	vulnSpreadStep   = 0.28
	vulnFanCap       = 6
	vulnAngleJitter  = 0.06
	vulnRadiusJitter = 0.06

	zombieOpacity = 0.45

	// First ring slot points straight up.
	startAngle = -math.Pi / 2
)

// goldenAngle is the irrational ring increment π(3−√5): successive slots
// never land on a previous direction, so rings stay evenly filled at any N.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Options control filtering and annotation during layout.
type Options struct {
	// ReachableOnly omits vulnerability nodes whose code path is not
	// reachable. Dependency nodes are never filtered.
	ReachableOnly bool
	// Banned marks dependencies, keyed by name@version, that violate an
	// active policy ban.
	Banned map[string]bool
}

type builder struct {
	opts Options
	j    *Jitter
	seen map[string]int

	nodes []canvas.Node
	edges []canvas.Edge
	deps  int
	vulns int
}

func newBuilder(centerName string, opts Options) *builder {
	return &builder{
		opts:  opts,
		j:     NewJitter(SeedFor(centerName)),
		seen:  make(map[string]int),
		nodes: []canvas.Node{},
		edges: []canvas.Edge{},
	}
}

// Project lays out a project- or package-scoped tree: center at the origin,
// direct dependencies on a golden-angle ring, transitive children fanned on
// outer rings, vulnerability leaves fanned from their owners. A center with
// zero children yields just the center and its own vulnerability fan.
func Project(tree *model.ProjectTree, opts Options) canvas.Graph {
	b := newBuilder(tree.Center.Name, opts)

	center := canvas.NewNode("center", canvas.NodeCenter, canvas.Position{}, canvas.NodeData{
		Label:    tree.Center.Name,
		Sublabel: tree.Center.Version,
		Severity: tree.Worst(opts.ReachableOnly),
		Banned:   tree.Center.Banned,
		Icon:     tree.Center.Icon,
	})
	b.nodes = append(b.nodes, center)

	b.fanVulns("center", canvas.Position{}, startAngle, vulnOffsetCenter, tree.Vulnerabilities, true)

	radius := ringRadius(len(tree.Dependencies))
	for i, dep := range tree.Dependencies {
		angle := startAngle + float64(i)*goldenAngle
		pos := polar(canvas.Position{}, radius, angle)
		b.addDependency("center", canvas.Position{}, pos, angle, dep, true)
	}

	return canvas.Graph{
		Scope: scopeFor(tree),
		Nodes: b.nodes,
		Edges: b.edges,
		Stats: canvas.Stats{
			Nodes:           len(b.nodes),
			Edges:           len(b.edges),
			Dependencies:    b.deps,
			Vulnerabilities: b.vulns,
			Worst:           tree.Worst(opts.ReachableOnly),
		},
	}
}

// addDependency places one dependency node, its vulnerability fan, and its
// transitive children, then connects it to its parent.
func (b *builder) addDependency(parentID string, parentPos, pos canvas.Position, angle float64, node *model.DependencyNode, fromCenter bool) {
	visible := b.filterVulns(node.Vulnerabilities)
	counts := model.CountSeverities(visible)

	id := b.uniqueID(parentID + "/dep:" + node.Dependency.String())
	data := canvas.NodeData{
		Label:     node.Dependency.Name,
		Sublabel:  node.Dependency.Version,
		Severity:  counts.Worst(),
		Counts:    counts,
		Score:     maxScore(visible),
		Banned:    b.opts.Banned[node.Dependency.String()],
		Zombie:    node.Dependency.Zombie,
		Malicious: node.Dependency.Malicious,
		DevOnly:   node.Dependency.DevOnly,
	}
	if data.Score != nil {
		data.Bracket = model.BracketForScore(*data.Score)
	}
	if node.Dependency.Zombie {
		data.Opacity = zombieOpacity
	}
	b.nodes = append(b.nodes, canvas.NewNode(id, canvas.NodeDependency, pos, data))
	b.deps++

	hp := HandleFor(angle)
	if !fromCenter {
		hp = OutgoingHandleFor(angleBetween(parentPos, pos))
	}
	b.edges = append(b.edges, canvas.Edge{
		ID:           "e:" + parentID + "->" + id,
		Source:       parentID,
		Target:       id,
		SourceHandle: hp.Source,
		TargetHandle: hp.Target,
		Color:        EdgeColor(node.WorstSeverity(true)),
		Animated:     b.visibleVulnCount(node) > 0,
	})

	b.fanVulns(id, pos, angle, vulnOffsetDep, node.Vulnerabilities, false)

	if len(node.Children) == 0 {
		return
	}
	count := len(node.Children)
	arc := math.Min(transitiveArcMax, transitiveArcPer*float64(count))
	ring := math.Hypot(pos.X, pos.Y) + transitiveOffset
	for k, child := range node.Children {
		slot := angle - arc/2 + arc*(float64(k)+0.5)/float64(count)
		childAngle := b.j.Angle(slot, transitiveAngleJitter)
		childRadius := b.j.Radius(ring, transitiveRadiusJitter)
		childPos := polar(canvas.Position{}, childRadius, childAngle)
		b.addDependency(id, pos, childPos, childAngle, child, false)
	}
}

// fanVulns places the owner's advisory leaves in a bounded arc pointing
// away from the graph center. The spread grows with the advisory count but
// stops growing past the cap; extra leaves pack inside the same arc.
func (b *builder) fanVulns(ownerID string, ownerPos canvas.Position, baseAngle, offset float64, vulns []*model.Vulnerability, fromCenter bool) {
	visible := b.filterVulns(vulns)
	count := len(visible)
	if count == 0 {
		return
	}
	span := vulnSpreadStep * math.Min(float64(count), vulnFanCap)
	for k, v := range visible {
		slot := baseAngle - span/2 + span*(float64(k)+0.5)/float64(count)
		angle := b.j.Angle(slot, vulnAngleJitter)
		radius := b.j.Radius(offset, vulnRadiusJitter)
		pos := polar(ownerPos, radius, angle)

		id := b.uniqueID(ownerID + "/vuln:" + v.ID)
		data := canvas.NodeData{
			Label:     v.ID,
			Sublabel:  v.FixedVersion,
			Severity:  v.Severity,
			Score:     v.Score,
			Reachable: v.Reachable,
			KEV:       v.CISAKEV,
		}
		if v.Score != nil {
			data.Bracket = model.BracketForScore(*v.Score)
		}
		b.nodes = append(b.nodes, canvas.NewNode(id, canvas.NodeVulnerability, pos, data))
		b.vulns++

		hp := HandleFor(angle)
		if !fromCenter {
			hp = OutgoingHandleFor(angle)
		}
		color := ColorNone
		if v.Reachable {
			color = EdgeColor(v.Severity)
		}
		b.edges = append(b.edges, canvas.Edge{
			ID:           "e:" + ownerID + "->" + id,
			Source:       ownerID,
			Target:       id,
			SourceHandle: hp.Source,
			TargetHandle: hp.Target,
			Color:        color,
			Animated:     true,
		})
	}
}

func (b *builder) filterVulns(vulns []*model.Vulnerability) []*model.Vulnerability {
	if !b.opts.ReachableOnly {
		return vulns
	}
	return model.ReachableOnly(vulns)
}

// visibleVulnCount counts the advisories that survive filtering in the
// node's whole subtree.
func (b *builder) visibleVulnCount(node *model.DependencyNode) int {
	n := len(b.filterVulns(node.Vulnerabilities))
	for _, c := range node.Children {
		n += b.visibleVulnCount(c)
	}
	return n
}

// uniqueID disambiguates repeated ids (the same package appearing twice
// under one parent) with an ordinal suffix.
func (b *builder) uniqueID(id string) string {
	n := b.seen[id]
	b.seen[id] = n + 1
	if n == 0 {
		return id
	}
	return fmt.Sprintf("%s#%d", id, n+1)
}

func ringRadius(n int) float64 {
	return math.Max(ringMin, ringBase+float64(n)*ringStep)
}

func polar(origin canvas.Position, r, angle float64) canvas.Position {
	return canvas.Position{
		X: origin.X + r*math.Cos(angle),
		Y: origin.Y + r*math.Sin(angle),
	}
}

func angleBetween(from, to canvas.Position) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}

// maxScore returns the highest precomputed score among the advisories, nil
// when none carries one.
func maxScore(vulns []*model.Vulnerability) *int {
	var best *int
	for _, v := range vulns {
		if v.Score == nil {
			continue
		}
		if best == nil || *v.Score > *best {
			s := *v.Score
			best = &s
		}
	}
	return best
}

func scopeFor(tree *model.ProjectTree) string {
	kind := tree.Center.Kind
	if kind == "" {
		kind = model.CenterProject
	}
	if tree.ProjectID != "" {
		return string(kind) + ":" + tree.ProjectID
	}
	return string(kind) + ":" + tree.Center.Name
}
