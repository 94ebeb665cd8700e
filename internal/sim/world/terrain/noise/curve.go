package noise

import "sort"

// Curve reshapes normalized noise. Implementations should be monotonic.
type Curve interface {
	Evaluate(v float64) float64
}

type CurveFunc func(float64) float64

func (f CurveFunc) Evaluate(v float64) float64 { return f(v) }

type Linear struct{}

func (Linear) Evaluate(v float64) float64 { return v }

type Key struct {
	Time  float64 `yaml:"t" json:"t"`
	Value float64 `yaml:"v" json:"v"`
}

// Keyframes is a piecewise-linear curve through sorted keys. Inputs outside
// the key range take the value of the nearest end key.
type Keyframes struct {
	keys []Key
}

func NewKeyframes(keys []Key) Keyframes {
	ks := append([]Key(nil), keys...)
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].Time < ks[j].Time })
	return Keyframes{keys: ks}
}

func (k Keyframes) Keys() []Key { return append([]Key(nil), k.keys...) }

func (k Keyframes) Evaluate(v float64) float64 {
	n := len(k.keys)
	if n == 0 {
		return v
	}
	if v <= k.keys[0].Time {
		return k.keys[0].Value
	}
	if v >= k.keys[n-1].Time {
		return k.keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return k.keys[i].Time >= v })
	a, b := k.keys[i-1], k.keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	t := (v - a.Time) / span
	return a.Value + (b.Value-a.Value)*t
}
