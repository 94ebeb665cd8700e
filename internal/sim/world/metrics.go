package world

import (
	"time"

	"terrascape.ai/internal/observerproto"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	LoadedChunks int `json:"loaded_chunks"`
	ActiveChunks int `json:"active_chunks"`
	Observers    int `json:"observers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Totals Totals `json:"totals"`

	Viewpoint [2]float64 `json:"viewpoint"`
	Center    [2]int     `json:"center"`
}

type QueueDepths struct {
	PendingBuilds  int `json:"pending_builds"`
	AwaitingGrid   int `json:"awaiting_grid"`
	Planning       int `json:"planning"`
	PathQueue      int `json:"path_queue"`
	WorkerInFlight int `json:"worker_in_flight"`
}

type Totals struct {
	Requested       uint64 `json:"requested"`
	Built           uint64 `json:"built"`
	Planned         uint64 `json:"planned"`
	Painted         uint64 `json:"painted"`
	Evicted         uint64 `json:"evicted"`
	Segments        uint64 `json:"segments"`
	SkippedPairs    uint64 `json:"skipped_pairs"`
	ObserverDropped uint64 `json:"observer_dropped"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

// Bootstrap returns what an observer needs before opening the websocket.
func (w *World) Bootstrap() observerproto.BootstrapResponse {
	if w == nil {
		return observerproto.BootstrapResponse{}
	}
	v, _ := w.bootstrap.Load().(observerproto.BootstrapResponse)
	v.ActiveChunks = append([][2]int(nil), v.ActiveChunks...)
	return v
}

func (w *World) publish(stepDur time.Duration) {
	active := w.chunks.ActiveKeys()
	tick := w.tick.Load()
	w.metrics.Store(WorldMetrics{
		Tick:         tick,
		LoadedChunks: w.chunks.Count(),
		ActiveChunks: len(active),
		Observers:    len(w.observers),
		QueueDepths: QueueDepths{
			PendingBuilds:  len(w.pending),
			AwaitingGrid:   len(w.awaitingGrid),
			Planning:       len(w.planning),
			PathQueue:      len(w.pathQueue),
			WorkerInFlight: w.pool.InFlight(),
		},
		StepMS: float64(stepDur.Microseconds()) / 1000,
		Totals: Totals{
			Requested:       w.totals.requested,
			Built:           w.totals.built,
			Planned:         w.totals.planned,
			Painted:         w.totals.painted,
			Evicted:         w.totals.evicted,
			Segments:        w.totals.segments,
			SkippedPairs:    w.totals.skipped,
			ObserverDropped: w.totals.dropped,
		},
		Viewpoint: [2]float64{w.viewpoint.X, w.viewpoint.Z},
		Center:    [2]int{w.center.CX, w.center.CY},
	})

	chunks := make([][2]int, len(active))
	for i, k := range active {
		chunks[i] = [2]int{k.CX, k.CY}
	}
	w.bootstrap.Store(observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		WorldParams:     w.worldParams(),
		Viewpoint:       [2]float64{w.viewpoint.X, w.viewpoint.Z},
		ActiveChunks:    chunks,
		LoadedChunks:    w.chunks.Count(),
	})
}
