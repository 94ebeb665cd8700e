package world

import (
	"time"

	"terrascape.ai/internal/sim/world/nav/grid"
	"terrascape.ai/internal/sim/world/nav/plan"
	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/noise"
	"terrascape.ai/internal/sim/world/terrain/store"
)

type ChunkKey = store.ChunkKey

// Vec2 is a ground-plane position in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Chunk is one generated piece of terrain. Terrain arrays are immutable once
// the chunk exists; the node grid arrives later through the future and the
// planner owns anchors and segments.
type Chunk struct {
	Key     ChunkKey
	Heights *noise.Field
	Blend   *gen.BlendMap
	// Painted is Blend plus the path layer, set once paths are applied.
	Painted *gen.BlendMap

	BuildDuration time.Duration
	BuiltTick     uint64

	grid    *grid.Future
	planner *plan.Planner
}

// ChunkView is a copy of a chunk's planning state handed to consumers.
type ChunkView struct {
	Key      ChunkKey
	Active   bool
	GridSize int
	Anchors  []AnchorView
	Segments []plan.Segment
	Skipped  int
}

type AnchorView struct {
	Edge plan.Edge
	X    int
	Y    int
}

// Consumer receives chunk data as the world produces it. Calls happen on the
// world loop goroutine; everything passed in is a copy the consumer may keep.
type Consumer interface {
	OnTerrain(key ChunkKey, heights *noise.Field, blend *gen.BlendMap)
	// OnAnchors runs once a chunk's anchors are assigned, before planning.
	OnAnchors(c ChunkView)
	// OnPaths runs once per chunk after its path layer is painted.
	OnPaths(c ChunkView, painted *gen.BlendMap)
}

// EventLogger records chunk lifecycle events (JSONL log, index db).
type EventLogger interface {
	WriteEvent(e ChunkEvent) error
}

type EventKind string

const (
	EventRequested   EventKind = "requested"
	EventBuilt       EventKind = "built"
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
	EventAnchors     EventKind = "anchors"
	EventPaths       EventKind = "paths"
	EventEvicted     EventKind = "evicted"
)

type ChunkEvent struct {
	Tick uint64    `json:"tick"`
	Kind EventKind `json:"kind"`
	CX   int       `json:"cx"`
	CY   int       `json:"cy"`

	BuildMS   float64 `json:"build_ms,omitempty"`
	GridSize  int     `json:"grid_size,omitempty"`
	Anchors   int     `json:"anchors,omitempty"`
	Segments  int     `json:"segments,omitempty"`
	Skipped   int     `json:"skipped,omitempty"`
	PathNodes int     `json:"path_nodes,omitempty"`
	PathCost  float64 `json:"path_cost,omitempty"`
}
