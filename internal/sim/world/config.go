package world

import (
	"terrascape.ai/internal/sim/tuning"
	"terrascape.ai/internal/sim/world/terrain/gen"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

type Config struct {
	TickRateHz int
	Seed       int64
	Workers    int

	// WorldWidth is the edge of one chunk in world units; WorldHeight scales
	// normalized heights into world units.
	WorldWidth  float64
	WorldHeight float64

	HeightmapResolution int
	AlphamapResolution  int
	Noise               noise.Params
	Offset              noise.Vec2
	Curve               noise.Curve
	Regions             []gen.Region

	VisibleRadius int
	MaxChunks     int

	NodeSize  float64
	PathWidth float64
	MaxStep   float64
}

func ConfigFromTuning(t tuning.Tuning) Config {
	regions := make([]gen.Region, 0, len(t.Terrain.Regions))
	for _, r := range t.Terrain.Regions {
		regions = append(regions, gen.Region{Name: r.Name, Height: r.Height})
	}
	return Config{
		TickRateHz:          t.TickRateHz,
		Seed:                t.Seed,
		Workers:             t.Workers,
		WorldWidth:          t.World.Width,
		WorldHeight:         t.World.Height,
		HeightmapResolution: t.Terrain.HeightmapResolution,
		AlphamapResolution:  t.Terrain.AlphamapResolution,
		Noise:               t.NoiseParams(),
		Offset:              noise.Vec2{X: t.Terrain.Offset[0], Y: t.Terrain.Offset[1]},
		Curve:               t.HeightCurve(),
		Regions:             regions,
		VisibleRadius:       t.VisibleRadius(),
		MaxChunks:           t.Streaming.MaxChunks,
		NodeSize:            t.Paths.NodeSize,
		PathWidth:           t.Paths.PathWidth,
		MaxStep:             t.Paths.MaxStep,
	}
}

// ChunkSize is the world-space distance between neighbouring chunk origins.
func (c Config) ChunkSize() float64 { return c.WorldWidth - 1 }

func (c Config) alphaUnit() float64 {
	if c.AlphamapResolution <= 0 {
		return 1
	}
	return c.WorldWidth / float64(c.AlphamapResolution)
}

// pathUnits converts node size and path width into alpha cells.
func (c Config) pathUnits() (cellUnits, widthUnits int) {
	u := c.alphaUnit()
	return int(c.NodeSize / u), int(c.PathWidth / u)
}

func (c *Config) normalize() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.WorldWidth <= 1 {
		c.WorldWidth = 100
	}
	if c.HeightmapResolution < 2 {
		c.HeightmapResolution = 129
	}
	if c.AlphamapResolution <= 0 {
		c.AlphamapResolution = 512
	}
	if c.NodeSize <= 0 {
		c.NodeSize = 0.5
	}
	if c.PathWidth <= 0 {
		c.PathWidth = 2
	}
	if c.VisibleRadius < 0 {
		c.VisibleRadius = 0
	}
	if c.Curve == nil {
		c.Curve = noise.Linear{}
	}
}
