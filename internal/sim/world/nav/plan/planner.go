// Package plan picks one anchor node on each side of a chunk, reusing the
// anchors of already planned neighbours so paths meet at chunk borders, and
// connects the anchors pairwise with A*.
package plan

import (
	"log"
	"math/rand"

	"terrascape.ai/internal/sim/world/logic/astar"
	"terrascape.ai/internal/sim/world/logic/mathx"
	"terrascape.ai/internal/sim/world/nav/grid"
)

const anchorAttempts = 10

type State int

const (
	AnchorsPending State = iota
	AnchorsAssigned
	Planning
	Planned
)

func (s State) String() string {
	switch s {
	case AnchorsPending:
		return "anchors_pending"
	case AnchorsAssigned:
		return "anchors_assigned"
	case Planning:
		return "planning"
	case Planned:
		return "planned"
	default:
		return "unknown"
	}
}

type Segment struct {
	From  Edge
	To    Edge
	Nodes []grid.Point
	Cost  float64
}

type Planner struct {
	cx, cy int
	logger *log.Logger
	rng    *rand.Rand

	state    State
	grid     *grid.Grid
	anchors  Anchors
	pairs    [][2]Edge
	next     int
	segments []Segment
	skipped  int
	scratch  *astar.Scratch
}

// New returns a planner for chunk (cx, cy). Its random choices depend only on
// seed and the chunk coordinate.
func New(seed int64, cx, cy int, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.Default()
	}
	return &Planner{
		cx:     cx,
		cy:     cy,
		logger: logger,
		rng:    rand.New(rand.NewSource(int64(mathx.Hash2(seed, cx, cy)))),
	}
}

func (p *Planner) State() State { return p.state }

// AssignAnchors fixes one anchor per side. neighbours maps a side of this
// chunk to the anchors of the chunk across it; that chunk's opposite anchor
// is reused when present. Sides without a usable neighbour anchor get a
// random walkable border node, or stay empty after anchorAttempts misses.
// Calling it again after a successful assignment does nothing.
func (p *Planner) AssignAnchors(g *grid.Grid, neighbours map[Edge]*Anchors) bool {
	if p.state != AnchorsPending {
		return false
	}
	if g == nil {
		p.logger.Printf("plan: chunk (%d,%d) anchors requested without a node grid", p.cx, p.cy)
		return false
	}
	p.grid = g
	n := g.Size
	for _, e := range AllEdges {
		if nb, ok := neighbours[e].Get(e.Opposite()); ok {
			along := alongSide(e.Opposite(), nb)
			if along >= 0 && along < n {
				p.anchors.set(e, onSide(e, along, n))
				continue
			}
		}
		if pt, ok := p.randomAnchor(e, n); ok {
			p.anchors.set(e, pt)
		} else {
			p.logger.Printf("plan: chunk (%d,%d) no walkable %s anchor after %d attempts", p.cx, p.cy, e, anchorAttempts)
		}
	}

	edges := p.anchors.Edges()
	for i := 0; i < len(edges); i++ {
		for j := i + 1; j < len(edges); j++ {
			p.pairs = append(p.pairs, [2]Edge{edges[i], edges[j]})
		}
	}
	p.rng.Shuffle(len(p.pairs), func(i, j int) { p.pairs[i], p.pairs[j] = p.pairs[j], p.pairs[i] })
	p.state = AnchorsAssigned
	return true
}

func (p *Planner) randomAnchor(e Edge, n int) (grid.Point, bool) {
	if n <= 0 {
		return grid.Point{}, false
	}
	for i := 0; i < anchorAttempts; i++ {
		pt := onSide(e, p.rng.Intn(n), n)
		if p.grid.Walkable(pt.X, pt.Y) {
			return pt, true
		}
	}
	return grid.Point{}, false
}

// Anchors returns a copy of the assigned anchors. Before assignment it logs
// and returns nil.
func (p *Planner) Anchors() *Anchors {
	if p.state == AnchorsPending {
		p.logger.Printf("plan: chunk (%d,%d) anchors read before assignment", p.cx, p.cy)
		return nil
	}
	a := p.anchors
	return &a
}

func (p *Planner) Anchor(e Edge) (grid.Point, bool) {
	return p.Anchors().Get(e)
}

// Step connects the next anchor pair and reports whether pairs remain. Each
// call does one search so the caller can spread planning over ticks.
func (p *Planner) Step() bool {
	switch p.state {
	case AnchorsPending:
		p.logger.Printf("plan: chunk (%d,%d) step before anchors", p.cx, p.cy)
		return false
	case Planned:
		return false
	case AnchorsAssigned:
		p.state = Planning
		if p.scratch == nil {
			p.scratch = astar.NewScratch()
		}
	}
	if p.next >= len(p.pairs) {
		p.finish()
		return false
	}
	pair := p.pairs[p.next]
	p.next++

	from, _ := p.anchors.Get(pair[0])
	to, _ := p.anchors.Get(pair[1])
	if !p.grid.Walkable(from.X, from.Y) || !p.grid.Walkable(to.X, to.Y) {
		p.skipped++
	} else if nodes, cost, ok := astar.Search(p.grid, astar.Point(from), astar.Point(to), p.scratch); ok {
		seg := Segment{From: pair[0], To: pair[1], Cost: cost, Nodes: make([]grid.Point, len(nodes))}
		for i, n := range nodes {
			seg.Nodes[i] = grid.Point(n)
		}
		p.segments = append(p.segments, seg)
	} else {
		p.skipped++
		p.logger.Printf("plan: chunk (%d,%d) no path %s -> %s", p.cx, p.cy, pair[0], pair[1])
	}

	if p.next >= len(p.pairs) {
		p.finish()
		return false
	}
	return true
}

func (p *Planner) finish() {
	p.state = Planned
	p.scratch = nil
}

func (p *Planner) Segments() []Segment { return p.segments }

// Skipped counts pairs that produced no segment.
func (p *Planner) Skipped() int { return p.skipped }

func (p *Planner) Pairs() int { return len(p.pairs) }
