package world

import (
	"terrascape.ai/internal/sim/world/logic/mathx"
	"terrascape.ai/internal/sim/world/nav/grid"
	"terrascape.ai/internal/sim/world/nav/plan"
	"terrascape.ai/internal/sim/world/terrain/gen"
)

// ChunkAt returns the chunk coordinate containing a world position.
func (w *World) ChunkAt(pos Vec2) ChunkKey {
	size := w.cfg.ChunkSize()
	return ChunkKey{CX: mathx.FloorDivF(pos.X, size), CY: mathx.FloorDivF(pos.Z, size)}
}

// OnViewpointMoved updates visibility for a new viewpoint. Nothing happens
// while the viewpoint stays inside the same chunk.
func (w *World) OnViewpointMoved(pos Vec2) {
	w.viewpoint = pos
	c := w.ChunkAt(pos)
	if w.hasCenter && c == w.center {
		return
	}
	w.center = c
	w.hasCenter = true
	w.sweep()
}

func (w *World) inView(k ChunkKey) bool {
	if !w.hasCenter {
		return false
	}
	r := w.cfg.VisibleRadius
	return mathx.AbsInt(k.CX-w.center.CX) <= r && mathx.AbsInt(k.CY-w.center.CY) <= r
}

func (w *World) sweep() {
	tick := w.tick.Load()
	for _, k := range w.chunks.ActiveKeys() {
		if w.inView(k) {
			continue
		}
		w.chunks.Deactivate(k, tick)
		w.writeEvent(ChunkEvent{Kind: EventDeactivated, CX: k.CX, CY: k.CY})
		w.broadcastState(k, false, false)
	}

	r := w.cfg.VisibleRadius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			k := ChunkKey{CX: w.center.CX + dx, CY: w.center.CY + dy}
			if w.chunks.Exists(k) {
				wasActive := w.chunks.IsActive(k)
				w.chunks.Activate(k, tick)
				if !wasActive {
					w.writeEvent(ChunkEvent{Kind: EventActivated, CX: k.CX, CY: k.CY})
					w.broadcastState(k, true, false)
				}
				continue
			}
			if _, inFlight := w.pending[k]; inFlight {
				continue
			}
			w.pending[k] = struct{}{}
			w.totals.requested++
			w.writeEvent(ChunkEvent{Kind: EventRequested, CX: k.CX, CY: k.CY})
			w.builder.Request(k, w.onTerrainBuilt)
		}
	}
}

// onTerrainBuilt runs during builder.Drain on the world goroutine.
func (w *World) onTerrainBuilt(res gen.Result) {
	k := res.Key
	delete(w.pending, k)
	if w.chunks.Exists(k) {
		return
	}
	tick := w.tick.Load()
	c := &Chunk{
		Key:           k,
		Heights:       res.Heights,
		Blend:         res.Blend,
		BuildDuration: res.Duration,
		BuiltTick:     tick,
		grid:          grid.NewFuture(),
		planner:       plan.New(w.cfg.Seed, k.CX, k.CY, w.logger),
	}
	w.chunks.Set(k, c)
	w.totals.built++
	if w.inView(k) {
		w.chunks.Activate(k, tick)
	}

	heights := res.Heights
	cfg := w.cfg
	c.grid.Start(w.pool, func() *grid.Grid {
		return grid.Build(heights, cfg.AlphamapResolution, cfg.WorldWidth, cfg.NodeSize, grid.Options{
			MaxStep:     cfg.MaxStep,
			WorldHeight: cfg.WorldHeight,
		})
	})
	w.awaitingGrid[k] = struct{}{}

	w.writeEvent(ChunkEvent{
		Kind:    EventBuilt,
		CX:      k.CX,
		CY:      k.CY,
		BuildMS: float64(res.Duration.Microseconds()) / 1000,
	})
	for _, cons := range w.consumers {
		cons.OnTerrain(k, c.Heights.Clone(), c.Blend.Clone())
	}
}

// neighbourAnchors collects the anchors of assigned chunks next to k.
func (w *World) neighbourAnchors(k ChunkKey) map[plan.Edge]*plan.Anchors {
	out := make(map[plan.Edge]*plan.Anchors, 4)
	for _, e := range plan.AllEdges {
		dx, dy := e.Offset()
		nb, ok := w.chunks.Get(ChunkKey{CX: k.CX + dx, CY: k.CY + dy})
		if !ok || !w.anchorsAssigned(nb) {
			continue
		}
		out[e] = nb.planner.Anchors()
	}
	return out
}

func (w *World) forget(k ChunkKey) {
	delete(w.pending, k)
	delete(w.awaitingGrid, k)
	delete(w.planning, k)
	for i, q := range w.pathQueue {
		if q == k {
			w.pathQueue = append(w.pathQueue[:i], w.pathQueue[i+1:]...)
			break
		}
	}
}
