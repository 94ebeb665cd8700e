package plan

import "terrascape.ai/internal/sim/world/nav/grid"

type Edge int

const (
	Top Edge = iota
	Bottom
	Left
	Right
)

// AllEdges lists the sides in their canonical order.
var AllEdges = [4]Edge{Top, Bottom, Left, Right}

func (e Edge) String() string {
	switch e {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "invalid"
	}
}

func (e Edge) Opposite() Edge {
	switch e {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	default:
		return Left
	}
}

// Offset is the chunk coordinate step towards the neighbour on this side.
// Top is +Y.
func (e Edge) Offset() (dx, dy int) {
	switch e {
	case Top:
		return 0, 1
	case Bottom:
		return 0, -1
	case Left:
		return -1, 0
	default:
		return 1, 0
	}
}

// onSide places the coordinate along e onto the border row/column of an
// n-node grid.
func onSide(e Edge, along, n int) grid.Point {
	switch e {
	case Top:
		return grid.Point{X: along, Y: n - 1}
	case Bottom:
		return grid.Point{X: along, Y: 0}
	case Left:
		return grid.Point{X: 0, Y: along}
	default:
		return grid.Point{X: n - 1, Y: along}
	}
}

func alongSide(e Edge, p grid.Point) int {
	if e == Top || e == Bottom {
		return p.X
	}
	return p.Y
}

// Anchors holds at most one border node per side.
type Anchors struct {
	pts [4]grid.Point
	has [4]bool
}

func (a *Anchors) Get(e Edge) (grid.Point, bool) {
	if a == nil || e < Top || e > Right {
		return grid.Point{}, false
	}
	return a.pts[e], a.has[e]
}

func (a *Anchors) set(e Edge, p grid.Point) {
	a.pts[e] = p
	a.has[e] = true
}

func (a *Anchors) Len() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, h := range a.has {
		if h {
			n++
		}
	}
	return n
}

// Edges returns the assigned sides in canonical order.
func (a *Anchors) Edges() []Edge {
	if a == nil {
		return nil
	}
	out := make([]Edge, 0, 4)
	for _, e := range AllEdges {
		if a.has[e] {
			out = append(out, e)
		}
	}
	return out
}
