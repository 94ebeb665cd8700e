// Package noise builds deterministic height fields from seeded Perlin noise.
package noise

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
)

const (
	minScale       = 1e-4
	seedSpread     = 100000
	defaultOctaves = 1

	// period is the lattice period of go-perlin's gradient table. The
	// library truncates coordinates below -4096 the wrong way, so samples
	// are wrapped into [0, period) first.
	period = 256
)

type Vec2 struct {
	X float64
	Y float64
}

type Params struct {
	Scale       float64
	Persistence float64
	Lacunarity  float64
	Octaves     int
	Seed        int64
}

func (p Params) normalized() Params {
	if p.Scale <= 0 {
		p.Scale = minScale
	}
	if p.Octaves <= 0 {
		p.Octaves = defaultOctaves
	}
	if p.Persistence <= 0 {
		p.Persistence = 0.5
	}
	if p.Lacunarity <= 0 {
		p.Lacunarity = 2
	}
	return p
}

// amplitude is the largest magnitude the octave sum can reach, relative to a
// single octave. It only depends on the params, never on sampled values.
func (p Params) amplitude() float64 {
	total, a := 0.0, 1.0
	for i := 0; i < p.Octaves; i++ {
		total += a
		a *= p.Persistence
	}
	return total
}

// SeedOffset is the noise-space shift derived from seed alone.
func SeedOffset(seed int64) Vec2 {
	prng := rand.New(rand.NewSource(seed))
	x := prng.Intn(2*seedSpread) - seedSpread
	y := prng.Intn(2*seedSpread) - seedSpread
	return Vec2{X: float64(x), Y: float64(y)}
}

// Generate returns a width x height field in [0,1] shaped by curve.
// Identical arguments always produce an identical field.
func Generate(width, height int, p Params, offset Vec2, curve Curve) *Field {
	return GenerateAt([2]int{}, width, height, p, offset, curve)
}

// GenerateAt samples the noise at integer sample positions origin+(x,y).
// Fields generated from origins that differ by (width-1) along one axis share
// bit-identical samples on the common border.
func GenerateAt(origin [2]int, width, height int, p Params, offset Vec2, curve Curve) *Field {
	f := NewField(width, height)
	if width <= 0 || height <= 0 {
		return f
	}
	p = p.normalized()
	if curve == nil {
		curve = Linear{}
	}

	src := perlin.NewPerlin(1/p.Persistence, p.Lacunarity, int32(p.Octaves), p.Seed)
	so := SeedOffset(p.Seed)
	ox := so.X + offset.X
	oy := so.Y + offset.Y
	amp := p.amplitude()

	for y := 0; y < height; y++ {
		sy := float64(origin[1]+y)/p.Scale + oy
		for x := 0; x < width; x++ {
			sx := float64(origin[0]+x)/p.Scale + ox
			raw := src.Noise2D(wrap(sx), wrap(sy))
			// Perlin output is centred on zero; shift into [0,1].
			v := (raw/amp + 1) / 2
			f.Values[y*width+x] = float32(curve.Evaluate(clamp01(v)))
		}
	}
	return f
}

// wrap maps v into [0, period). Equal inputs give equal outputs, so shared
// chunk borders stay bit-identical.
func wrap(v float64) float64 {
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
