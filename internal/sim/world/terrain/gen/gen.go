package gen

import (
	"time"

	"terrascape.ai/internal/sim/worker"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

type ChunkKey struct {
	CX int
	CY int
}

// Config is everything the builder needs to turn a chunk key into terrain.
type Config struct {
	HeightmapResolution int
	AlphamapResolution  int
	Noise               noise.Params
	Offset              noise.Vec2
	Curve               noise.Curve
	Regions             []Region
}

// Result is the terrain payload of one chunk. Ownership passes to the
// completion callback; the builder keeps no reference.
type Result struct {
	Key      ChunkKey
	Heights  *noise.Field
	Blend    *BlendMap
	Duration time.Duration
}

type completion struct {
	res Result
	cb  func(Result)
}

// Builder generates chunk terrain on a worker pool. Callbacks only run from
// Drain, which the owner calls from its own loop.
type Builder struct {
	cfg   Config
	pool  *worker.Pool
	queue worker.Completions[completion]
}

func NewBuilder(cfg Config, pool *worker.Pool) *Builder {
	if cfg.Curve == nil {
		cfg.Curve = noise.Linear{}
	}
	return &Builder{cfg: cfg, pool: pool}
}

func (b *Builder) Config() Config { return b.cfg }

// ChunkOrigin is the integer sample origin of a chunk. Neighbouring chunks
// overlap by exactly one sample row/column.
func (b *Builder) ChunkOrigin(key ChunkKey) [2]int {
	step := b.cfg.HeightmapResolution - 1
	return [2]int{key.CX * step, key.CY * step}
}

// ChunkOffset is the noise-space offset equivalent to ChunkOrigin. Generation
// uses the integer origin; the offset is kept for tooling that samples noise
// directly.
func (b *Builder) ChunkOffset(key ChunkKey) noise.Vec2 {
	scale := b.cfg.Noise.Scale
	if scale <= 0 {
		scale = 1e-4
	}
	step := float64(b.cfg.HeightmapResolution-1) / scale
	return noise.Vec2{
		X: b.cfg.Offset.X + float64(key.CX)*step,
		Y: b.cfg.Offset.Y + float64(key.CY)*step,
	}
}

// Generate builds a chunk synchronously on the calling goroutine.
func (b *Builder) Generate(key ChunkKey) Result {
	start := time.Now()
	res := b.cfg.HeightmapResolution
	heights := noise.GenerateAt(b.ChunkOrigin(key), res, res, b.cfg.Noise, b.cfg.Offset, b.cfg.Curve)
	blend := BuildBlendMap(heights, b.cfg.AlphamapResolution, b.cfg.Regions)
	return Result{Key: key, Heights: heights, Blend: blend, Duration: time.Since(start)}
}

// Request generates key in the background. onComplete runs during a later
// Drain, never on the worker.
func (b *Builder) Request(key ChunkKey, onComplete func(Result)) {
	job := func() {
		b.queue.Push(completion{res: b.Generate(key), cb: onComplete})
	}
	if b.pool == nil || !b.pool.Submit(job) {
		job()
	}
}

// Drain applies every finished build in arrival order and returns how many
// callbacks ran.
func (b *Builder) Drain() int {
	done := b.queue.Drain()
	for _, c := range done {
		if c.cb != nil {
			c.cb(c.res)
		}
	}
	return len(done)
}

func (b *Builder) Pending() int { return b.queue.Len() }
