package world

import (
	"time"

	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/store"
)

// step runs one tick. Phase order matters: terrain that finished building is
// registered before anchors are assigned, so a chunk and its neighbour built
// in the same tick still share border anchors.
func (w *World) step(vp *Vec2) {
	start := time.Now()

	if vp != nil {
		w.OnViewpointMoved(*vp)
	}
	w.builder.Drain()
	w.assignReadyAnchors()
	w.advancePlanners()
	w.paintNextPaths()
	w.evict()
	w.flushObservers()

	w.publish(time.Since(start))
	w.tick.Add(1)
}

func sortedKeys(set map[ChunkKey]struct{}) []ChunkKey {
	keys := make([]ChunkKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	return keys
}

func (w *World) assignReadyAnchors() {
	for _, k := range sortedKeys(w.awaitingGrid) {
		c, ok := w.chunks.Get(k)
		if !ok {
			delete(w.awaitingGrid, k)
			continue
		}
		g, ready := c.grid.Poll()
		if !ready {
			continue
		}
		delete(w.awaitingGrid, k)
		if !c.planner.AssignAnchors(g, w.neighbourAnchors(k)) {
			continue
		}
		w.planning[k] = struct{}{}

		w.writeEvent(ChunkEvent{
			Kind:     EventAnchors,
			CX:       k.CX,
			CY:       k.CY,
			GridSize: g.Size,
			Anchors:  c.planner.Anchors().Len(),
		})
		for _, cons := range w.consumers {
			cons.OnAnchors(w.view(c))
		}
	}
}

// advancePlanners runs one A* search per planning chunk.
func (w *World) advancePlanners() {
	for _, k := range sortedKeys(w.planning) {
		c, ok := w.chunks.Get(k)
		if !ok {
			delete(w.planning, k)
			continue
		}
		if c.planner.Step() {
			continue
		}
		delete(w.planning, k)
		w.pathQueue = append(w.pathQueue, k)
		w.totals.planned++
	}
}

// paintNextPaths paints at most one planned chunk per tick.
func (w *World) paintNextPaths() {
	for len(w.pathQueue) > 0 {
		k := w.pathQueue[0]
		w.pathQueue = w.pathQueue[1:]
		c, ok := w.chunks.Get(k)
		if !ok {
			continue
		}

		segs := c.planner.Segments()
		paths := make([][]gen.Cell, 0, len(segs))
		nodes := 0
		cost := 0.0
		for _, s := range segs {
			cells := make([]gen.Cell, len(s.Nodes))
			for i, p := range s.Nodes {
				cells[i] = gen.Cell{X: p.X, Y: p.Y}
			}
			paths = append(paths, cells)
			nodes += len(cells)
			cost += s.Cost
		}
		cellUnits, widthUnits := w.cfg.pathUnits()
		c.Painted = gen.PaintPaths(c.Blend, paths, cellUnits, widthUnits)

		w.totals.painted++
		w.totals.segments += uint64(len(segs))
		w.totals.skipped += uint64(c.planner.Skipped())
		w.writeEvent(ChunkEvent{
			Kind:      EventPaths,
			CX:        k.CX,
			CY:        k.CY,
			Anchors:   c.planner.Anchors().Len(),
			Segments:  len(segs),
			Skipped:   c.planner.Skipped(),
			PathNodes: nodes,
			PathCost:  cost,
		})
		for _, cons := range w.consumers {
			cons.OnPaths(w.view(c), c.Painted.Clone())
		}
		return
	}
}

func (w *World) evict() {
	for _, k := range w.chunks.Evict() {
		w.forget(k)
		w.totals.evicted++
		w.writeEvent(ChunkEvent{Kind: EventEvicted, CX: k.CX, CY: k.CY})
		w.broadcastState(k, false, true)
	}
}
