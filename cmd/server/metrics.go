package main

import (
	"fmt"
	"io"

	"terrascape.ai/internal/sim/world"
)

type metricLine struct {
	name  string
	kind  string
	help  string
	value float64
}

// writeMetrics renders a minimal Prometheus exposition of the world metrics.
func writeMetrics(out io.Writer, worldID string, m world.WorldMetrics, sessions int, sources ...any) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s gauge\n", name)
		fmt.Fprintf(out, "%s{world=%q} %v\n", name, worldID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s counter\n", name)
		fmt.Fprintf(out, "%s{world=%q} %d\n", name, worldID, v)
	}

	gauge("terrascape_world_tick", "Current world tick.", m.Tick)
	gauge("terrascape_world_loaded_chunks", "Loaded chunk count.", m.LoadedChunks)
	gauge("terrascape_world_active_chunks", "Chunks inside the visible radius.", m.ActiveChunks)
	gauge("terrascape_world_observers", "Observer sessions registered with the world.", m.Observers)
	gauge("terrascape_observer_sessions", "Connected observer websockets.", sessions)
	fmt.Fprintf(out, "# HELP terrascape_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(out, "# TYPE terrascape_world_step_ms gauge\n")
	fmt.Fprintf(out, "terrascape_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(out, "# HELP terrascape_world_queue_depth Chunks waiting in each lifecycle stage.\n")
	fmt.Fprintf(out, "# TYPE terrascape_world_queue_depth gauge\n")
	q := m.QueueDepths
	for _, s := range []struct {
		name string
		v    int
	}{
		{"pending_builds", q.PendingBuilds},
		{"awaiting_grid", q.AwaitingGrid},
		{"planning", q.Planning},
		{"path_queue", q.PathQueue},
		{"worker_in_flight", q.WorkerInFlight},
	} {
		fmt.Fprintf(out, "terrascape_world_queue_depth{world=%q,queue=%q} %d\n", worldID, s.name, s.v)
	}

	t := m.Totals
	counter("terrascape_chunks_requested_total", "Terrain builds requested.", t.Requested)
	counter("terrascape_chunks_built_total", "Terrain builds completed.", t.Built)
	counter("terrascape_chunks_planned_total", "Chunks whose anchor pairs were all searched.", t.Planned)
	counter("terrascape_chunks_painted_total", "Chunks with a painted path layer.", t.Painted)
	counter("terrascape_chunks_evicted_total", "Chunks removed by the eviction policy.", t.Evicted)
	counter("terrascape_path_segments_total", "Path segments found.", t.Segments)
	counter("terrascape_path_skipped_total", "Anchor pairs without a path.", t.SkippedPairs)
	counter("terrascape_observer_dropped_total", "Observer messages deferred because a session queue was full.", t.ObserverDropped)

	for _, src := range sources {
		s, ok := src.(metricSource)
		if !ok {
			continue
		}
		for _, l := range s.metricLines() {
			fmt.Fprintf(out, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(out, "# TYPE %s %s\n", l.name, l.kind)
			fmt.Fprintf(out, "%s{world=%q} %g\n", l.name, worldID, l.value)
		}
	}
}
