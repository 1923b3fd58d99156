// Package canvas defines the render schema for supply-chain graphs: the
// node/edge shapes consumed by canvas clients, plus server-side PNG and
// HTML renderers. Layout computation lives in internal/layout; this package
// only describes and draws the result.
package canvas

import (
	"time"

	"github.com/deptexhq/deptex/internal/model"
)

// NodeType discriminates how a node renders.
type NodeType string

const (
	NodeCenter        NodeType = "center"
	NodeDependency    NodeType = "dependency"
	NodeVulnerability NodeType = "vulnerability"
	NodeProject       NodeType = "project"
	NodeTeam          NodeType = "team"
	NodeOrganization  NodeType = "organization"
	// NodeSkeleton is the fixed-position placeholder shown before the first
	// real layout commits.
	NodeSkeleton NodeType = "skeleton"
)

// String returns the string representation of the node type.
func (t NodeType) String() string {
	return string(t)
}

// Position is an absolute coordinate on the infinite canvas. Y grows
// downward.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the display payload attached to a node.
type NodeData struct {
	Label    string `json:"label"`
	Sublabel string `json:"sublabel,omitempty"`

	Severity model.Severity       `json:"severity,omitempty"`
	Counts   model.SeverityCounts `json:"counts,omitempty"`
	Score    *int                 `json:"score,omitempty"`
	Bracket  model.ScoreBracket   `json:"bracket,omitempty"`

	Reachable bool `json:"reachable,omitempty"`
	KEV       bool `json:"kev,omitempty"`
	Banned    bool `json:"banned,omitempty"`
	Zombie    bool `json:"zombie,omitempty"`
	Malicious bool `json:"malicious,omitempty"`
	DevOnly   bool `json:"dev_only,omitempty"`

	// Opacity overrides the default 1.0 when non-zero (zombie dimming).
	Opacity float64 `json:"opacity,omitempty"`
	Icon    string  `json:"icon,omitempty"`
}

// Node is one positioned element on the canvas.
type Node struct {
	ID         string   `json:"id"`
	Type       NodeType `json:"type"`
	Position   Position `json:"position"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Data       NodeData `json:"data"`
	Draggable  bool     `json:"draggable"`
	Selectable bool     `json:"selectable"`
}

// Edge connects two nodes by id. Handle ids must name handles the node
// types actually define (see Handle* constants).
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`
	Color        string `json:"color"`
	Animated     bool   `json:"animated"`
}

// Stats summarizes a rendered graph.
type Stats struct {
	Nodes           int            `json:"nodes"`
	Edges           int            `json:"edges"`
	Dependencies    int            `json:"dependencies"`
	Vulnerabilities int            `json:"vulnerabilities"`
	Worst           model.Severity `json:"worst"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// Graph is a complete laid-out scene.
type Graph struct {
	Scope string `json:"scope"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// Connector handle ids, four compass points per direction. Every node type
// defines all eight.
const (
	HandleSourceTop    = "source-top"
	HandleSourceRight  = "source-right"
	HandleSourceBottom = "source-bottom"
	HandleSourceLeft   = "source-left"
	HandleTargetTop    = "target-top"
	HandleTargetRight  = "target-right"
	HandleTargetBottom = "target-bottom"
	HandleTargetLeft   = "target-left"
)

// Fixed node dimensions per type. The skeleton shares the center's box so
// the camera framing holds when real data lands.
func NodeSize(t NodeType) (w, h float64) {
	switch t {
	case NodeCenter, NodeOrganization, NodeSkeleton:
		return 220, 140
	case NodeProject, NodeTeam:
		return 200, 120
	case NodeDependency:
		return 180, 90
	case NodeVulnerability:
		return 170, 64
	}
	return 180, 90
}

// NewNode builds a node of the given type at a position, with dimensions
// filled in from the type.
func NewNode(id string, t NodeType, pos Position, data NodeData) Node {
	w, h := NodeSize(t)
	return Node{
		ID:         id,
		Type:       t,
		Position:   pos,
		Width:      w,
		Height:     h,
		Data:       data,
		Draggable:  t != NodeSkeleton,
		Selectable: t != NodeSkeleton,
	}
}

// Skeleton returns the placeholder graph shown while the first layout for a
// scope is still loading: a single undraggable node at the origin with the
// same footprint the real center will have.
func Skeleton(scope, label string) Graph {
	n := NewNode("skeleton", NodeSkeleton, Position{X: 0, Y: 0}, NodeData{Label: label})
	return Graph{
		Scope: scope,
		Nodes: []Node{n},
		Edges: []Edge{},
		Stats: Stats{Nodes: 1, Worst: model.SeverityNone},
	}
}
