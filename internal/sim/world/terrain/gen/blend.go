package gen

import (
	"math"

	"terrascape.ai/internal/sim/world/logic/mathx"
	"terrascape.ai/internal/sim/world/terrain/noise"
)

// Region is one surface layer, used up to its height threshold.
type Region struct {
	Name   string
	Height float64
}

// BlendMap holds per-layer weights for each alpha cell:
// Weights[(y*Resolution+x)*Layers+layer].
type BlendMap struct {
	Resolution int
	Layers     int
	Weights    []float32
}

func NewBlendMap(resolution, layers int) *BlendMap {
	return &BlendMap{
		Resolution: resolution,
		Layers:     layers,
		Weights:    make([]float32, resolution*resolution*layers),
	}
}

func (b *BlendMap) index(x, y, layer int) int {
	return (y*b.Resolution+x)*b.Layers + layer
}

func (b *BlendMap) At(x, y, layer int) float32 {
	return b.Weights[b.index(x, y, layer)]
}

func (b *BlendMap) Set(x, y, layer int, v float32) {
	b.Weights[b.index(x, y, layer)] = v
}

// Cell returns the weights of one alpha cell.
func (b *BlendMap) Cell(x, y int) []float32 {
	i := b.index(x, y, 0)
	out := make([]float32, b.Layers)
	copy(out, b.Weights[i:i+b.Layers])
	return out
}

func (b *BlendMap) Clone() *BlendMap {
	if b == nil {
		return nil
	}
	out := &BlendMap{Resolution: b.Resolution, Layers: b.Layers, Weights: make([]float32, len(b.Weights))}
	copy(out.Weights, b.Weights)
	return out
}

// BuildBlendMap assigns layer weights from height thresholds. Each alpha cell
// reads the height cell it falls under. The first region whose threshold is at
// or above the height takes the interpolated weight and the region before it
// the remainder. Heights above every threshold go fully to the last region.
//
// Thresholds are expected to be non-decreasing; out-of-order regions still
// produce a map, just with visible banding.
func BuildBlendMap(heights *noise.Field, alphaRes int, regions []Region) *BlendMap {
	bm := NewBlendMap(alphaRes, len(regions))
	if alphaRes <= 0 || len(regions) == 0 || heights == nil || len(heights.Values) == 0 {
		return bm
	}
	ratioX := float64(heights.Width) / float64(alphaRes)
	ratioY := float64(heights.Height) / float64(alphaRes)
	last := len(regions) - 1

	for y := 0; y < alphaRes; y++ {
		hy := mathx.ClampInt(int(math.Floor(ratioY*float64(y))), 0, heights.Height-1)
		for x := 0; x < alphaRes; x++ {
			hx := mathx.ClampInt(int(math.Floor(ratioX*float64(x))), 0, heights.Width-1)
			h := float64(heights.At(hx, hy))

			assigned := false
			for i, r := range regions {
				if h > r.Height {
					continue
				}
				if i == 0 {
					bm.Set(x, y, 0, 1)
				} else {
					t := mathx.InverseLerp(regions[i-1].Height, r.Height, h)
					bm.Set(x, y, i, float32(t))
					bm.Set(x, y, i-1, float32(1-t))
				}
				assigned = true
				break
			}
			if !assigned {
				bm.Set(x, y, last, 1)
			}
		}
	}
	return bm
}
