package main

import (
	"strings"
	"testing"

	"terrascape.ai/internal/sim/world"
)

func TestSummary_CleanLifecycle(t *testing.T) {
	s := newSummary()
	for _, e := range []world.ChunkEvent{
		{Tick: 1, Kind: world.EventRequested, CX: 0, CY: 0},
		{Tick: 2, Kind: world.EventBuilt, CX: 0, CY: 0, BuildMS: 3.5},
		{Tick: 3, Kind: world.EventAnchors, CX: 0, CY: 0, Anchors: 4},
		{Tick: 4, Kind: world.EventPaths, CX: 0, CY: 0, Anchors: 4, Segments: 5, Skipped: 1, PathCost: 12},
		{Tick: 5, Kind: world.EventDeactivated, CX: 0, CY: 0},
		{Tick: 6, Kind: world.EventEvicted, CX: 0, CY: 0},
		{Tick: 7, Kind: world.EventRequested, CX: 0, CY: 0},
	} {
		s.add(e)
	}
	if len(s.violations) != 0 {
		t.Fatalf("violations: %v", s.violations)
	}
	if s.segments != 5 || s.skipped != 1 || s.kinds[world.EventRequested] != 2 {
		t.Fatalf("got segments=%d skipped=%d requested=%d", s.segments, s.skipped, s.kinds[world.EventRequested])
	}

	var sb strings.Builder
	s.print(&sb, 3)
	if !strings.Contains(sb.String(), "lifecycle ok") || !strings.Contains(sb.String(), "slow build (0,0) 3.50ms") {
		t.Fatalf("output:\n%s", sb.String())
	}
}

func TestSummary_Violations(t *testing.T) {
	s := newSummary()
	s.add(world.ChunkEvent{Tick: 5, Kind: world.EventBuilt, CX: 1, CY: 1})
	s.add(world.ChunkEvent{Tick: 4, Kind: world.EventPaths, CX: 2, CY: 2, Anchors: 4, Segments: 2})
	if got := len(s.violations); got != 4 {
		// built without request, tick backwards, paths before anchors, pair count
		t.Fatalf("violations: got %d want 4: %v", got, s.violations)
	}
}
