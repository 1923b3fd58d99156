package canvas

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/deptexhq/deptex/internal/model"
)

// Renderer draws graphs to static images. The zero value renders with the
// built-in bitmap font; LoadFont upgrades labels to a TTF face.
type Renderer struct {
	labelFace    font.Face
	sublabelFace font.Face
}

// NewRenderer returns a renderer using the default bitmap font.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// LoadFont loads a TTF file for node labels. Sublabels use the same font
// two points smaller.
func (r *Renderer) LoadFont(path string, size float64) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read font file: %w", err)
	}
	parsed, err := truetype.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse TTF: %w", err)
	}
	r.labelFace = truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	r.sublabelFace = truetype.NewFace(parsed, &truetype.Options{
		Size:    size - 2,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return nil
}

// Rendering geometry and palette.
const (
	pngPadding = 120.0
	pngMaxDim  = 4000

	background = "#0f1320"
)

var severityFill = map[model.Severity]string{
	model.SeverityCritical: "#dc2626",
	model.SeverityHigh:     "#ea580c",
	model.SeverityMedium:   "#d97706",
	model.SeverityLow:      "#ca8a04",
	model.SeverityNone:     "#334155",
}

func nodeRadius(t NodeType) float64 {
	switch t {
	case NodeCenter, NodeOrganization, NodeSkeleton:
		return 46
	case NodeProject, NodeTeam:
		return 38
	case NodeDependency:
		return 26
	case NodeVulnerability:
		return 16
	}
	return 26
}

// PNG renders the graph as a dark-themed image: severity-colored discs,
// dashed strokes for animated edges, labels under each node. Oversized
// scenes are scaled down to fit the dimension cap.
func (r *Renderer) PNG(g Graph) ([]byte, error) {
	minX, minY, maxX, maxY := bounds(g)

	width := maxX - minX + 2*pngPadding
	height := maxY - minY + 2*pngPadding
	scale := 1.0
	if width > pngMaxDim {
		scale = pngMaxDim / width
	}
	if height*scale > pngMaxDim {
		scale = pngMaxDim / height
	}
	w := int(width * scale)
	h := int(height * scale)

	dc := gg.NewContext(w, h)
	dc.SetHexColor(background)
	dc.Clear()

	tx := func(x float64) float64 { return (x - minX + pngPadding) * scale }
	ty := func(y float64) float64 { return (y - minY + pngPadding) * scale }

	pos := make(map[string]Position, len(g.Nodes))
	for _, n := range g.Nodes {
		pos[n.ID] = Position{X: tx(n.Position.X), Y: ty(n.Position.Y)}
	}

	// Edges first so discs sit on top.
	for _, e := range g.Edges {
		from, okF := pos[e.Source]
		to, okT := pos[e.Target]
		if !okF || !okT {
			continue
		}
		dc.SetColor(parseRGBA(e.Color))
		dc.SetLineWidth(2 * scale)
		if e.Animated {
			dc.SetDash(6*scale, 4*scale)
		} else {
			dc.SetDash()
		}
		dc.DrawLine(from.X, from.Y, to.X, to.Y)
		dc.Stroke()
	}
	dc.SetDash()

	if r.labelFace != nil {
		dc.SetFontFace(r.labelFace)
	}
	for _, n := range g.Nodes {
		p := pos[n.ID]
		radius := nodeRadius(n.Type) * scale
		alpha := 1.0
		if n.Data.Opacity > 0 {
			alpha = n.Data.Opacity
		}

		fill := severityFill[model.SeverityNone]
		switch n.Type {
		case NodeDependency, NodeVulnerability:
			if c, ok := severityFill[n.Data.Severity]; ok {
				fill = c
			}
		default:
			fill = "#1e293b"
		}

		dc.SetColor(withAlpha(hexColor(fill), alpha))
		dc.DrawCircle(p.X, p.Y, radius)
		dc.Fill()

		// Ring: red for banned, orange for malicious, slate otherwise.
		ring := "#64748b"
		if n.Data.Malicious {
			ring = "#fb923c"
		}
		if n.Data.Banned {
			ring = "#ef4444"
		}
		dc.SetColor(withAlpha(hexColor(ring), alpha))
		dc.SetLineWidth(2.5 * scale)
		dc.DrawCircle(p.X, p.Y, radius)
		dc.Stroke()

		dc.SetColor(withAlpha(color.NRGBA{R: 0xe8, G: 0xe8, B: 0xf0, A: 0xff}, alpha))
		dc.DrawStringAnchored(n.Data.Label, p.X, p.Y+radius+12*scale, 0.5, 0.5)
		if n.Data.Sublabel != "" {
			if r.sublabelFace != nil {
				dc.SetFontFace(r.sublabelFace)
			}
			dc.SetColor(withAlpha(color.NRGBA{R: 0x88, G: 0x88, B: 0xaa, A: 0xff}, alpha))
			dc.DrawStringAnchored(n.Data.Sublabel, p.X, p.Y+radius+26*scale, 0.5, 0.5)
			if r.labelFace != nil {
				dc.SetFontFace(r.labelFace)
			}
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// bounds returns the world-coordinate extent of the graph, at least one
// node box around the origin.
func bounds(g Graph) (minX, minY, maxX, maxY float64) {
	minX, minY = -110, -70
	maxX, maxY = 110, 70
	for _, n := range g.Nodes {
		if x := n.Position.X - n.Width/2; x < minX {
			minX = x
		}
		if y := n.Position.Y - n.Height/2; y < minY {
			minY = y
		}
		if x := n.Position.X + n.Width/2; x > maxX {
			maxX = x
		}
		if y := n.Position.Y + n.Height/2; y > maxY {
			maxY = y
		}
	}
	return minX, minY, maxX, maxY
}

func hexColor(s string) color.NRGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{A: 0xff}
	}
	r, _ := strconv.ParseUint(s[0:2], 16, 8)
	g, _ := strconv.ParseUint(s[2:4], 16, 8)
	b, _ := strconv.ParseUint(s[4:6], 16, 8)
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xff}
}

// parseRGBA reads the "rgba(r, g, b, a)" strings the layout emits. Anything
// unparseable comes back gray.
func parseRGBA(s string) color.NRGBA {
	inner, ok := strings.CutPrefix(s, "rgba(")
	if !ok {
		return hexColor(s)
	}
	inner = strings.TrimSuffix(inner, ")")
	parts := strings.Split(inner, ",")
	if len(parts) != 4 {
		return color.NRGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff}
	}
	r, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	g, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	b, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
	a, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a * 255)}
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(float64(c.A) * alpha)
	return c
}
