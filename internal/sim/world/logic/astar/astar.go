// Package astar finds shortest 8-connected paths on small walkability grids.
package astar

import (
	"math"

	"terrascape.ai/internal/sim/world/logic/mathx"
	"terrascape.ai/internal/sim/world/logic/pq"
)

type Point struct {
	X int
	Y int
}

// Grid is the walkability view the search needs.
type Grid interface {
	Dims() (w, h int)
	Walkable(x, y int) bool
}

const (
	stateNone uint8 = iota
	stateOpen
	stateClosed
)

type node struct {
	id     int
	g      float64
	h      float64
	parent int
	state  uint8
	gen    uint32
	index  int
}

func (n *node) f() float64 { return n.g + n.h }

func (n *node) Less(o *node) bool {
	if fa, fb := n.f(), o.f(); fa != fb {
		return fa < fb
	}
	if n.h != o.h {
		return n.h < o.h
	}
	return n.id < o.id
}

func (n *node) HeapIndex() int     { return n.index }
func (n *node) SetHeapIndex(i int) { n.index = i }

// Scratch holds the per-node search state so searches over grids of the
// same size allocate nothing after the first. A Scratch is used by one
// search at a time.
type Scratch struct {
	nodes []node
	gen   uint32
	open  *pq.Queue[*node]
}

func NewScratch() *Scratch {
	return &Scratch{open: pq.New[*node](64)}
}

func (s *Scratch) reset(n int) {
	if len(s.nodes) < n {
		s.nodes = make([]node, n)
		s.gen = 0
	}
	s.gen++
	if s.gen == 0 {
		for i := range s.nodes {
			s.nodes[i].gen = 0
		}
		s.gen = 1
	}
	s.open.Reset()
}

func (s *Scratch) at(id int) *node {
	n := &s.nodes[id]
	if n.gen != s.gen {
		*n = node{id: id, parent: -1, gen: s.gen, index: -1}
	}
	return n
}

// Search returns the cheapest path from start to goal, both endpoints
// included, and its cost. Orthogonal steps cost 1 and diagonal steps √2.
// ok is false when either endpoint is unwalkable or the goal is unreachable.
func Search(g Grid, start, goal Point, s *Scratch) (path []Point, cost float64, ok bool) {
	w, h := g.Dims()
	inBounds := func(p Point) bool { return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h }
	if !inBounds(start) || !inBounds(goal) || !g.Walkable(start.X, start.Y) || !g.Walkable(goal.X, goal.Y) {
		return nil, 0, false
	}
	if s == nil {
		s = NewScratch()
	}
	s.reset(w * h)

	id := func(p Point) int { return p.Y*w + p.X }
	heuristic := func(p Point) float64 {
		return mathx.Octile(mathx.AbsInt(p.X-goal.X), mathx.AbsInt(p.Y-goal.Y))
	}

	first := s.at(id(start))
	first.h = heuristic(start)
	first.state = stateOpen
	s.open.Push(first)

	goalID := id(goal)
	for s.open.Len() > 0 {
		cur, _ := s.open.PopMin()
		cur.state = stateClosed
		if cur.id == goalID {
			return s.retrace(cur, w), cur.g, true
		}
		cx, cy := cur.id%w, cur.id/w
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				np := Point{X: cx + dx, Y: cy + dy}
				if !inBounds(np) || !g.Walkable(np.X, np.Y) {
					continue
				}
				nb := s.at(id(np))
				if nb.state == stateClosed {
					continue
				}
				step := 1.0
				if dx != 0 && dy != 0 {
					step = math.Sqrt2
				}
				tentative := cur.g + step
				open := nb.state == stateOpen && s.open.Contains(nb)
				if open && tentative >= nb.g {
					continue
				}
				nb.g = tentative
				nb.h = heuristic(np)
				nb.parent = cur.id
				if open {
					s.open.DecreaseKey(nb)
				} else {
					nb.state = stateOpen
					s.open.Push(nb)
				}
			}
		}
	}
	return nil, 0, false
}

func (s *Scratch) retrace(end *node, w int) []Point {
	n := 0
	for id := end.id; id >= 0; id = s.nodes[id].parent {
		n++
	}
	path := make([]Point, n)
	for id := end.id; id >= 0; id = s.nodes[id].parent {
		n--
		path[n] = Point{X: id % w, Y: id / w}
	}
	return path
}
