package canvas

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/deptexhq/deptex/internal/model"
)

func sampleGraph() Graph {
	score := 72
	return Graph{
		Scope: "project:prj_api",
		Nodes: []Node{
			NewNode("center", NodeCenter, Position{}, NodeData{Label: "api-server", Sublabel: "v2.1.0"}),
			NewNode("center/dep:lodash@4.17.21", NodeDependency, Position{X: 320, Y: 0}, NodeData{
				Label:    "lodash",
				Sublabel: "4.17.21",
				Severity: model.SeverityCritical,
				Counts:   model.SeverityCounts{Critical: 1},
			}),
			NewNode("center/dep:lodash@4.17.21/vuln:CVE-2021-23337", NodeVulnerability, Position{X: 470, Y: 40}, NodeData{
				Label:     "CVE-2021-23337",
				Severity:  model.SeverityCritical,
				Score:     &score,
				Bracket:   model.BracketModerate,
				Reachable: true,
			}),
		},
		Edges: []Edge{
			{
				ID:           "center->center/dep:lodash@4.17.21",
				Source:       "center",
				Target:       "center/dep:lodash@4.17.21",
				SourceHandle: HandleSourceRight,
				TargetHandle: HandleTargetLeft,
				Color:        "rgba(220, 38, 38, 0.95)",
				Animated:     true,
			},
			{
				ID:     "center/dep:lodash@4.17.21->center/dep:lodash@4.17.21/vuln:CVE-2021-23337",
				Source: "center/dep:lodash@4.17.21",
				Target: "center/dep:lodash@4.17.21/vuln:CVE-2021-23337",
				Color:  "rgba(220, 38, 38, 0.95)",
			},
		},
		Stats: Stats{
			Nodes:           3,
			Edges:           2,
			Dependencies:    1,
			Vulnerabilities: 1,
			Worst:           model.SeverityCritical,
			GeneratedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestNodeSize(t *testing.T) {
	for _, tc := range []struct {
		typ    NodeType
		w, h   float64
	}{
		{NodeCenter, 220, 140},
		{NodeOrganization, 220, 140},
		{NodeSkeleton, 220, 140},
		{NodeProject, 200, 120},
		{NodeTeam, 200, 120},
		{NodeDependency, 180, 90},
		{NodeVulnerability, 170, 64},
	} {
		w, h := NodeSize(tc.typ)
		if w != tc.w || h != tc.h {
			t.Errorf("NodeSize(%q) = %v×%v, want %v×%v", tc.typ, w, h, tc.w, tc.h)
		}
	}
}

func TestNewNodeFlags(t *testing.T) {
	n := NewNode("center", NodeCenter, Position{}, NodeData{Label: "api"})
	if !n.Draggable || !n.Selectable {
		t.Errorf("center node draggable=%v selectable=%v, want true/true", n.Draggable, n.Selectable)
	}
	s := NewNode("center", NodeSkeleton, Position{}, NodeData{Label: "loading"})
	if s.Draggable || s.Selectable {
		t.Errorf("skeleton node draggable=%v selectable=%v, want false/false", s.Draggable, s.Selectable)
	}
}

func TestSkeleton(t *testing.T) {
	g := Skeleton("project:prj_api", "api-server")
	if len(g.Nodes) != 1 || len(g.Edges) != 0 {
		t.Fatalf("Skeleton() = %d nodes %d edges, want 1 node 0 edges", len(g.Nodes), len(g.Edges))
	}
	n := g.Nodes[0]
	if n.Type != NodeSkeleton {
		t.Errorf("skeleton node type = %q, want %q", n.Type, NodeSkeleton)
	}
	if n.Width != 220 || n.Height != 140 {
		t.Errorf("skeleton size = %v×%v, want 220×140", n.Width, n.Height)
	}
	if g.Scope != "project:prj_api" {
		t.Errorf("skeleton scope = %q, want %q", g.Scope, "project:prj_api")
	}
}

func TestParseRGBA(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want color.NRGBA
	}{
		{"rgba(220, 38, 38, 0.95)", color.NRGBA{R: 220, G: 38, B: 38, A: 242}},
		{"rgba(148, 163, 184, 0.40)", color.NRGBA{R: 148, G: 163, B: 184, A: 102}},
		{"rgba(0, 0, 0, 1)", color.NRGBA{A: 255}},
		{"#dc2626", color.NRGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}},
		{"garbage", color.NRGBA{A: 0xff}},
		{"rgba(broken)", color.NRGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff}},
	} {
		if got := parseRGBA(tc.in); got != tc.want {
			t.Errorf("parseRGBA(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestWithAlpha(t *testing.T) {
	c := withAlpha(color.NRGBA{R: 10, G: 20, B: 30, A: 200}, 0.5)
	if c.A != 100 {
		t.Errorf("withAlpha(A=200, 0.5).A = %d, want 100", c.A)
	}
	if c.R != 10 || c.G != 20 || c.B != 30 {
		t.Errorf("withAlpha changed channels: %+v", c)
	}
}

func TestBounds(t *testing.T) {
	g := sampleGraph()
	minX, minY, maxX, maxY := bounds(g)
	if minX > -110 || minY > -70 {
		t.Errorf("bounds min = (%v, %v), want at most (-110, -70)", minX, minY)
	}
	// Rightmost content is the vulnerability node at x=470 with width 170.
	if maxX != 470+85 {
		t.Errorf("bounds maxX = %v, want %v", maxX, 470.0+85)
	}
	if maxY < 70 {
		t.Errorf("bounds maxY = %v, want at least 70", maxY)
	}
}

func TestRenderPNG(t *testing.T) {
	out, err := NewRenderer().PNG(sampleGraph())
	if err != nil {
		t.Fatalf("PNG() error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output does not decode as PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		t.Fatalf("decoded image is empty: %v", b)
	}
	if b.Dx() > pngMaxDim || b.Dy() > pngMaxDim {
		t.Errorf("image %dx%d exceeds cap %d", b.Dx(), b.Dy(), pngMaxDim)
	}
}

func TestRenderPNG_EmptyGraph(t *testing.T) {
	out, err := NewRenderer().PNG(Graph{Scope: "project:prj_empty"})
	if err != nil {
		t.Fatalf("PNG() on empty graph: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("empty-graph output does not decode: %v", err)
	}
}

func TestRenderPNG_ScalesDownLargeScenes(t *testing.T) {
	g := Graph{Scope: "org:org_acme"}
	g.Nodes = append(g.Nodes,
		NewNode("a", NodeTeam, Position{X: -4200, Y: -4200}, NodeData{Label: "platform"}),
		NewNode("b", NodeTeam, Position{X: 4200, Y: 4200}, NodeData{Label: "payments"}),
	)
	out, err := NewRenderer().PNG(g)
	if err != nil {
		t.Fatalf("PNG() error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output does not decode as PNG: %v", err)
	}
	if img.Bounds().Dx() > pngMaxDim || img.Bounds().Dy() > pngMaxDim {
		t.Errorf("image %v not scaled under cap %d", img.Bounds(), pngMaxDim)
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := NewRenderer().HTML(sampleGraph(), "api-server dependencies")
	if err != nil {
		t.Fatalf("HTML() error: %v", err)
	}
	page := string(out)
	for _, want := range []string{
		"<!DOCTYPE html>",
		"api-server dependencies",
		"project:prj_api",
		"const DATA = ",
		"lodash",
		"CVE-2021-23337",
		"stroke-dasharray",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("HTML output missing %q", want)
		}
	}
}

func TestRenderHTML_EscapesLabels(t *testing.T) {
	g := Graph{
		Scope: "project:prj_x",
		Nodes: []Node{
			NewNode("center", NodeCenter, Position{}, NodeData{Label: "</script><script>alert(1)"}),
		},
	}
	out, err := NewRenderer().HTML(g, "x")
	if err != nil {
		t.Fatalf("HTML() error: %v", err)
	}
	if strings.Contains(string(out), "</script><script>alert(1)") {
		t.Error("label broke out of the data script block")
	}
}
