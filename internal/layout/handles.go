package layout

import (
	"math"

	"github.com/deptexhq/deptex/internal/canvas"
)

// HandlePair names the connector handles an edge attaches to: Source on the
// edge's origin node, Target on its destination node.
type HandlePair struct {
	Source string
	Target string
}

// normalizeAngle maps any angle into [0, 2π).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// HandleFor maps the direction of a center-outgoing edge to its handle
// pair. The circle is partitioned into four π/2 quadrants centered on the
// compass axes (canvas convention: angle 0 points right, y grows downward),
// so every angle lands in exactly one quadrant.
func HandleFor(angle float64) HandlePair {
	a := normalizeAngle(angle + math.Pi/4)
	q := int(a/(math.Pi/2)) % 4
	switch q {
	case 0: // pointing right
		return HandlePair{Source: canvas.HandleSourceRight, Target: canvas.HandleTargetLeft}
	case 1: // pointing down
		return HandlePair{Source: canvas.HandleSourceBottom, Target: canvas.HandleTargetTop}
	case 2: // pointing left
		return HandlePair{Source: canvas.HandleSourceLeft, Target: canvas.HandleTargetRight}
	default: // pointing up
		return HandlePair{Source: canvas.HandleSourceTop, Target: canvas.HandleTargetBottom}
	}
}

// OutgoingHandleFor is the rotated variant used for edges that leave an
// already-placed node (dependency to vulnerability, dependency to
// transitive child): the quadrant boundaries sit on the compass axes
// instead of centered on them, which keeps short fan edges from doubling
// back across their node.
func OutgoingHandleFor(angle float64) HandlePair {
	a := normalizeAngle(angle)
	q := int(a/(math.Pi/2)) % 4
	switch q {
	case 0: // down-right quadrant
		return HandlePair{Source: canvas.HandleSourceBottom, Target: canvas.HandleTargetTop}
	case 1: // down-left quadrant
		return HandlePair{Source: canvas.HandleSourceLeft, Target: canvas.HandleTargetRight}
	case 2: // up-left quadrant
		return HandlePair{Source: canvas.HandleSourceTop, Target: canvas.HandleTargetBottom}
	default: // up-right quadrant
		return HandlePair{Source: canvas.HandleSourceRight, Target: canvas.HandleTargetLeft}
	}
}
