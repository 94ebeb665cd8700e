// Package grid reduces a chunk height field to a coarse walkability grid for
// path search.
package grid

import (
	"math"

	"terrascape.ai/internal/sim/world/logic/mathx"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

type Point struct {
	X int
	Y int
}

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

type Node struct {
	X        int
	Y        int
	Walkable bool
	Height   float32
	World    Vec3
}

// Options tunes walkability. The zero value marks every node walkable.
type Options struct {
	// MaxStep, as a fraction of WorldHeight, is the largest height change to an
	// orthogonal neighbour a walkable node may have. <= 0 disables the check.
	MaxStep     float64
	WorldHeight float64
}

// Grid is a square node grid, Nodes[y*Size+x].
type Grid struct {
	Size     int
	CellSize float64
	Nodes    []Node
}

// Build samples heights into a grid of nodes cellSize world units apart.
// worldWidth is the chunk's edge length in world units and alphaRes the
// resolution of its blend map.
func Build(heights *noise.Field, alphaRes int, worldWidth, cellSize float64, opts Options) *Grid {
	if heights == nil || alphaRes <= 0 || worldWidth <= 0 || cellSize <= 0 {
		return &Grid{CellSize: cellSize}
	}
	alphaUnit := worldWidth / float64(alphaRes)
	ratio := cellSize / alphaUnit
	size := int(float64(alphaRes) / ratio)
	if size < 0 {
		size = 0
	}
	heightPerAlpha := float64(heights.Width) / float64(alphaRes)

	g := &Grid{Size: size, CellSize: cellSize, Nodes: make([]Node, size*size)}
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			hx := mathx.ClampInt(int(float64(i)*ratio*heightPerAlpha), 0, heights.Width-1)
			hy := mathx.ClampInt(int(float64(j)*ratio*heightPerAlpha), 0, heights.Height-1)
			h := heights.At(hx, hy)
			g.Nodes[g.ID(i, j)] = Node{
				X:        i,
				Y:        j,
				Walkable: true,
				Height:   h,
				World:    Vec3{X: float64(i) * cellSize, Y: float64(h) * opts.WorldHeight, Z: float64(j) * cellSize},
			}
		}
	}
	if opts.MaxStep > 0 {
		g.markSteep(opts)
	}
	return g
}

func (g *Grid) markSteep(opts Options) {
	worldHeight := opts.WorldHeight
	if worldHeight <= 0 {
		worldHeight = 1
	}
	limit := opts.MaxStep * worldHeight
	steep := make([]bool, len(g.Nodes))
	for j := 0; j < g.Size; j++ {
		for i := 0; i < g.Size; i++ {
			h := float64(g.Nodes[g.ID(i, j)].Height) * worldHeight
			for _, d := range orthogonal {
				nx, ny := i+d.X, j+d.Y
				if !g.InBounds(nx, ny) {
					continue
				}
				nh := float64(g.Nodes[g.ID(nx, ny)].Height) * worldHeight
				if math.Abs(h-nh) > limit {
					steep[g.ID(i, j)] = true
					break
				}
			}
		}
	}
	for id, s := range steep {
		if s {
			g.Nodes[id].Walkable = false
		}
	}
}

var orthogonal = []Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

func (g *Grid) ID(x, y int) int { return y*g.Size + x }

func (g *Grid) Len() int { return len(g.Nodes) }

func (g *Grid) Dims() (int, int) { return g.Size, g.Size }

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Size && y < g.Size
}

func (g *Grid) At(x, y int) (*Node, bool) {
	if g == nil || !g.InBounds(x, y) {
		return nil, false
	}
	return &g.Nodes[g.ID(x, y)], true
}

func (g *Grid) Walkable(x, y int) bool {
	n, ok := g.At(x, y)
	return ok && n.Walkable
}

// SetWalkable overrides one node; used by tools and tests to carve obstacles.
func (g *Grid) SetWalkable(x, y int, walkable bool) {
	if n, ok := g.At(x, y); ok {
		n.Walkable = walkable
	}
}

// Neighbours8 appends the in-bounds 8-neighbourhood of (x,y) to dst in a
// fixed order.
func (g *Grid) Neighbours8(dst []Point, x, y int) []Point {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if g.InBounds(nx, ny) {
				dst = append(dst, Point{X: nx, Y: ny})
			}
		}
	}
	return dst
}
