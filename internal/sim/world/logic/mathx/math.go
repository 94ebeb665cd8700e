package mathx

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

// FloorDivF maps a world-space coordinate to a cell index of size b.
func FloorDivF(a, b float64) int {
	return int(math.Floor(a / b))
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InverseLerp returns where v lies between a and b, clamped to [0,1].
// A zero-width interval yields 0.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

// Octile is the exact path length between two cells under 8-directional
// movement with unit orthogonal and sqrt(2) diagonal steps.
func Octile(dx, dy int) float64 {
	dx = AbsInt(dx)
	dy = AbsInt(dy)
	if dx > dy {
		return math.Sqrt2*float64(dy) + float64(dx-dy)
	}
	return math.Sqrt2*float64(dx) + float64(dy-dx)
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
