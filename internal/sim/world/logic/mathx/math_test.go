package mathx

import (
	"math"
	"testing"
)

func TestFloorDiv_Negative(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 16, 0},
		{15, 16, 0},
		{16, 16, 1},
		{-1, 16, -1},
		{-16, 16, -1},
		{-17, 16, -2},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Fatalf("FloorDiv(%d,%d): got %d want %d", c.a, c.b, got, c.want)
		}
	}
	if got := FloorDivF(-0.5, 99); got != -1 {
		t.Fatalf("FloorDivF(-0.5): got %d want -1", got)
	}
	if got := FloorDivF(198, 99); got != 2 {
		t.Fatalf("FloorDivF(198): got %d want 2", got)
	}
}

func TestOctile(t *testing.T) {
	if got, want := Octile(4, 4), 4*math.Sqrt2; math.Abs(got-want) > 1e-12 {
		t.Fatalf("Octile(4,4): got %v want %v", got, want)
	}
	if got := Octile(-3, 0); got != 3 {
		t.Fatalf("Octile(-3,0): got %v want 3", got)
	}
	if got, want := Octile(1, 3), math.Sqrt2+2; math.Abs(got-want) > 1e-12 {
		t.Fatalf("Octile(1,3): got %v want %v", got, want)
	}
}

func TestInverseLerp(t *testing.T) {
	if got := InverseLerp(0.2, 0.4, 0.3); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("mid: got %v", got)
	}
	if got := InverseLerp(0.4, 0.4, 0.4); got != 0 {
		t.Fatalf("zero width: got %v", got)
	}
	if got := InverseLerp(0, 1, 2); got != 1 {
		t.Fatalf("clamp: got %v", got)
	}
}

func TestHash2_Stable(t *testing.T) {
	if Hash2(7, 1, 2) != Hash2(7, 1, 2) {
		t.Fatalf("hash not stable")
	}
	if Hash2(7, 1, 2) == Hash2(7, 2, 1) {
		t.Fatalf("hash symmetric in x/z")
	}
}
