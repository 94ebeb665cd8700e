// Package world streams terrain chunks around a moving viewpoint and plans
// paths that cross chunk borders. All chunk state is owned by the world loop
// goroutine; other goroutines talk to it through channels.
package world

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"terrascape.ai/internal/sim/worker"
	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/store"
)

type World struct {
	cfg    Config
	logger *log.Logger

	tick atomic.Uint64

	pool    *worker.Pool
	builder *gen.Builder
	chunks  *store.Registry[*Chunk]

	// pending holds keys with a terrain build in flight.
	pending map[ChunkKey]struct{}
	// awaitingGrid holds chunks whose node grid is not Ready yet.
	awaitingGrid map[ChunkKey]struct{}
	planning     map[ChunkKey]struct{}
	pathQueue    []ChunkKey

	viewpoint Vec2
	center    ChunkKey
	hasCenter bool

	viewpointCh   chan Vec2
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once

	observers map[string]*observerClient
	consumers []Consumer
	events    EventLogger

	totals    totals
	metrics   atomic.Value // WorldMetrics
	bootstrap atomic.Value // bootstrapState
}

type totals struct {
	requested uint64
	built     uint64
	planned   uint64
	painted   uint64
	evicted   uint64
	segments  uint64
	skipped   uint64
	dropped   uint64
}

// New validates cfg and returns an idle world. A negative Workers count builds
// terrain and grids inline on the world goroutine, which keeps StepOnce fully
// deterministic.
func New(cfg Config, logger *log.Logger) (*World, error) {
	cfg.normalize()
	if len(cfg.Regions) == 0 {
		return nil, errors.New("world: at least one terrain region is required")
	}
	if unit := cfg.alphaUnit(); cfg.NodeSize < unit {
		return nil, fmt.Errorf("world: node size %.3f is smaller than one alpha cell (%.3f)", cfg.NodeSize, unit)
	}
	if logger == nil {
		logger = log.Default()
	}

	var pool *worker.Pool
	if cfg.Workers >= 0 {
		pool = worker.NewPool(cfg.Workers)
	}

	var policy store.EvictionPolicy = store.Never{}
	if cfg.MaxChunks > 0 {
		policy = store.LRU{Capacity: cfg.MaxChunks}
	}

	w := &World{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		builder: gen.NewBuilder(gen.Config{
			HeightmapResolution: cfg.HeightmapResolution,
			AlphamapResolution:  cfg.AlphamapResolution,
			Noise:               cfg.Noise,
			Offset:              cfg.Offset,
			Curve:               cfg.Curve,
			Regions:             cfg.Regions,
		}, pool),
		chunks:        store.NewRegistry[*Chunk](policy),
		pending:       map[ChunkKey]struct{}{},
		awaitingGrid:  map[ChunkKey]struct{}{},
		planning:      map[ChunkKey]struct{}{},
		viewpointCh:   make(chan Vec2, 1),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	w.consumers = []Consumer{observerFanout{w}}
	w.publish(0)
	return w, nil
}

// AddConsumer registers c for chunk callbacks. Call before Run.
func (w *World) AddConsumer(c Consumer) {
	if c != nil {
		w.consumers = append(w.consumers, c)
	}
}

// SetEventLogger sets the chunk event sink. Call before Run.
func (w *World) SetEventLogger(l EventLogger) { w.events = l }

func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	cfg := w.cfg
	cfg.Regions = append([]gen.Region(nil), w.cfg.Regions...)
	return cfg
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Close releases the worker pool. The world must not be stepped afterwards.
func (w *World) Close() {
	if w == nil {
		return
	}
	w.pool.Close()
}

func (w *World) writeEvent(e ChunkEvent) {
	if w.events == nil {
		return
	}
	e.Tick = w.tick.Load()
	if err := w.events.WriteEvent(e); err != nil {
		w.logger.Printf("world: event log: %v", err)
	}
}
