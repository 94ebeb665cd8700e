package world

import (
	"terrascape.ai/internal/sim/world/nav/grid"
	"terrascape.ai/internal/sim/world/nav/plan"
)

// chunkGrid returns the chunk's node grid, or nil with a warning while the grid is
// still being built.
func (w *World) chunkGrid(c *Chunk) *grid.Grid {
	g, ok := c.grid.Poll()
	if !ok {
		w.logger.Printf("world: chunk (%d,%d) node grid read while %s", c.Key.CX, c.Key.CY, c.grid.State())
		return nil
	}
	return g
}

// ChunkGrid looks up a loaded chunk's node grid. It is only safe to call from
// the world goroutine or between StepOnce calls.
func (w *World) ChunkGrid(k ChunkKey) *grid.Grid {
	c, ok := w.chunks.Get(k)
	if !ok {
		return nil
	}
	return w.chunkGrid(c)
}

// ChunkView returns a copy of a loaded chunk's planning state. Same goroutine
// rules as ChunkGrid.
func (w *World) ChunkView(k ChunkKey) (ChunkView, bool) {
	c, ok := w.chunks.Get(k)
	if !ok {
		return ChunkView{}, false
	}
	return w.view(c), true
}

func (w *World) anchorsAssigned(c *Chunk) bool {
	return c.planner != nil && c.planner.State() != plan.AnchorsPending
}

func (w *World) view(c *Chunk) ChunkView {
	v := ChunkView{Key: c.Key, Active: w.chunks.IsActive(c.Key)}
	if g, ok := c.grid.Poll(); ok {
		v.GridSize = g.Size
	}
	if !w.anchorsAssigned(c) {
		return v
	}
	a := c.planner.Anchors()
	for _, e := range a.Edges() {
		p, _ := a.Get(e)
		v.Anchors = append(v.Anchors, AnchorView{Edge: e, X: p.X, Y: p.Y})
	}
	v.Skipped = c.planner.Skipped()
	for _, s := range c.planner.Segments() {
		s.Nodes = append([]grid.Point(nil), s.Nodes...)
		v.Segments = append(v.Segments, s)
	}
	return v
}
