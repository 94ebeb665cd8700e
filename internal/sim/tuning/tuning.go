package tuning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"terrascape.ai/internal/sim/world/terrain/noise"
	"terrascape.ai/schemas"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz int   `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	Seed       int64 `yaml:"seed" json:"seed"`
	Workers    int   `yaml:"workers" json:"workers"`

	World     World     `yaml:"world" json:"world"`
	Terrain   Terrain   `yaml:"terrain" json:"terrain"`
	Streaming Streaming `yaml:"streaming" json:"streaming"`
	Paths     Paths     `yaml:"paths" json:"paths"`

	notes []string
}

// World is the size of one chunk in world units.
type World struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	Length float64 `yaml:"length" json:"length"`
}

type Terrain struct {
	HeightmapResolution int          `yaml:"heightmap_resolution" json:"heightmap_resolution"`
	AlphamapResolution  int          `yaml:"alphamap_resolution" json:"alphamap_resolution"`
	NoiseScale          float64      `yaml:"noise_scale" json:"noise_scale"`
	Persistence         float64      `yaml:"persistence" json:"persistence"`
	Lacunarity          float64      `yaml:"lacunarity" json:"lacunarity"`
	Octaves             int          `yaml:"octaves" json:"octaves"`
	Offset              [2]float64   `yaml:"offset" json:"offset"`
	Curve               []noise.Key  `yaml:"curve" json:"curve"`
	Regions             []RegionSpec `yaml:"regions" json:"regions"`
}

type RegionSpec struct {
	Name   string  `yaml:"name" json:"name"`
	Height float64 `yaml:"height" json:"height"`
}

type Streaming struct {
	MaxViewDist float64 `yaml:"max_view_dist" json:"max_view_dist"`
	MaxChunks   int     `yaml:"max_chunks" json:"max_chunks"`
}

type Paths struct {
	NodeSize  float64 `yaml:"node_size" json:"node_size"`
	PathWidth float64 `yaml:"path_width" json:"path_width"`
	MaxStep   float64 `yaml:"max_step" json:"max_step"`
}

const minNoiseScale = 1e-4

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		World:           World{Width: 100, Height: 100, Length: 100},
		Terrain: Terrain{
			HeightmapResolution: 129,
			AlphamapResolution:  512,
			NoiseScale:          10,
			Persistence:         0.5,
			Lacunarity:          2,
			Octaves:             1,
			Regions: []RegionSpec{
				{Name: "water", Height: 0.3},
				{Name: "sand", Height: 0.4},
				{Name: "grass", Height: 0.6},
				{Name: "forest", Height: 0.75},
				{Name: "rock", Height: 0.9},
				{Name: "snow", Height: 1.0},
			},
		},
		Streaming: Streaming{MaxViewDist: 200},
		Paths:     Paths{NodeSize: 0.5, PathWidth: 2},
	}
}

// Load reads a tuning file over Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize clamps values generation cannot work with. Every change is
// remembered and reported by Lint.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	note := func(format string, args ...any) {
		t.notes = append(t.notes, fmt.Sprintf(format, args...))
	}
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		note("tick_rate_hz %d raised to 20", t.TickRateHz)
		t.TickRateHz = 20
	}
	if t.Workers < 0 {
		t.Workers = 0
	}
	if t.Terrain.NoiseScale <= 0 {
		note("noise_scale %v clamped to %v", t.Terrain.NoiseScale, minNoiseScale)
		t.Terrain.NoiseScale = minNoiseScale
	}
	if t.Terrain.Octaves <= 0 {
		t.Terrain.Octaves = 1
	}
	if t.Terrain.Persistence <= 0 {
		note("persistence %v reset to 0.5", t.Terrain.Persistence)
		t.Terrain.Persistence = 0.5
	}
	if t.Terrain.Lacunarity <= 0 {
		note("lacunarity %v reset to 2", t.Terrain.Lacunarity)
		t.Terrain.Lacunarity = 2
	}
	if t.Streaming.MaxViewDist < 0 {
		t.Streaming.MaxViewDist = 0
	}
	if t.Streaming.MaxChunks < 0 {
		t.Streaming.MaxChunks = 0
	}
	if t.Paths.MaxStep < 0 {
		t.Paths.MaxStep = 0
	}
	if t.World.Length <= 0 {
		t.World.Length = t.World.Width
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := schemas.FS.ReadFile(schemas.TuningSchema)
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemas.TuningSchema, bytes.NewReader(raw)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemas.TuningSchema)
	})
	return schema, schemaErr
}

// Validate checks the tuning against the embedded JSON schema plus the
// cross-field rules the schema cannot express.
func (t Tuning) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return err
	}

	alphaUnit := t.World.Width / float64(t.Terrain.AlphamapResolution)
	if t.Paths.NodeSize < alphaUnit {
		return fmt.Errorf("paths.node_size %v is smaller than one alpha cell (%v world units)", t.Paths.NodeSize, alphaUnit)
	}
	if t.Paths.NodeSize > t.World.Width {
		return fmt.Errorf("paths.node_size %v exceeds world.width %v", t.Paths.NodeSize, t.World.Width)
	}
	seen := map[string]bool{}
	for _, r := range t.Terrain.Regions {
		if seen[r.Name] {
			return fmt.Errorf("duplicate region name: %s", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// Lint reports problems that are tolerated at runtime but almost certainly
// unintended.
func (t Tuning) Lint() []string {
	out := append([]string(nil), t.notes...)
	for i := 1; i < len(t.Terrain.Regions); i++ {
		prev, cur := t.Terrain.Regions[i-1], t.Terrain.Regions[i]
		if cur.Height < prev.Height {
			out = append(out, fmt.Sprintf("region %s height %v is below %s height %v; blend bands will be discontinuous", cur.Name, cur.Height, prev.Name, prev.Height))
		}
	}
	if n := len(t.Terrain.Regions); n > 0 && t.Terrain.Regions[n-1].Height < 1 {
		out = append(out, fmt.Sprintf("last region %s ends at %v; higher terrain saturates it", t.Terrain.Regions[n-1].Name, t.Terrain.Regions[n-1].Height))
	}
	for i := 1; i < len(t.Terrain.Curve); i++ {
		a, b := t.Terrain.Curve[i-1], t.Terrain.Curve[i]
		if b.Time > a.Time && b.Value < a.Value {
			out = append(out, fmt.Sprintf("curve decreases between t=%v and t=%v", a.Time, b.Time))
		}
	}
	if t.Streaming.MaxViewDist > 0 && t.VisibleRadius() == 0 {
		out = append(out, fmt.Sprintf("max_view_dist %v is under half a chunk; only the viewpoint chunk is loaded", t.Streaming.MaxViewDist))
	}
	if r := t.VisibleRadius(); t.Streaming.MaxChunks > 0 && t.Streaming.MaxChunks < (2*r+1)*(2*r+1) {
		out = append(out, fmt.Sprintf("max_chunks %d is below the %d visible chunks; eviction only removes idle chunks", t.Streaming.MaxChunks, (2*r+1)*(2*r+1)))
	}
	return out
}

// ChunkSize is the world-space edge of one chunk; neighbouring chunks share
// their border samples, hence width - 1.
func (t Tuning) ChunkSize() float64 { return t.World.Width - 1 }

// VisibleRadius is max_view_dist in whole chunks, rounded half away from zero.
func (t Tuning) VisibleRadius() int {
	cs := t.ChunkSize()
	if cs <= 0 {
		return 0
	}
	return int(math.Round(t.Streaming.MaxViewDist / cs))
}

func (t Tuning) NoiseParams() noise.Params {
	return noise.Params{
		Scale:       t.Terrain.NoiseScale,
		Persistence: t.Terrain.Persistence,
		Lacunarity:  t.Terrain.Lacunarity,
		Octaves:     t.Terrain.Octaves,
		Seed:        t.Seed,
	}
}

// HeightCurve is nil when no keys are configured (identity).
func (t Tuning) HeightCurve() noise.Curve {
	if len(t.Terrain.Curve) == 0 {
		return nil
	}
	return noise.NewKeyframes(t.Terrain.Curve)
}
