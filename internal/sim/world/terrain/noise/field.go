package noise

// Field is a row-major 2D array of samples: Values[y*Width+x].
type Field struct {
	Width  int
	Height int
	Values []float32
}

func NewField(width, height int) *Field {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Field{Width: width, Height: height, Values: make([]float32, width*height)}
}

func (f *Field) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

func (f *Field) At(x, y int) float32 {
	return f.Values[y*f.Width+x]
}

func (f *Field) Set(x, y int, v float32) {
	f.Values[y*f.Width+x] = v
}

func (f *Field) Column(x int) []float32 {
	out := make([]float32, f.Height)
	for y := 0; y < f.Height; y++ {
		out[y] = f.At(x, y)
	}
	return out
}

func (f *Field) Row(y int) []float32 {
	out := make([]float32, f.Width)
	copy(out, f.Values[y*f.Width:(y+1)*f.Width])
	return out
}

func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	out := &Field{Width: f.Width, Height: f.Height, Values: make([]float32, len(f.Values))}
	copy(out.Values, f.Values)
	return out
}

// MinMax returns the smallest and largest sample. An empty field yields (0,0).
func (f *Field) MinMax() (lo, hi float32) {
	if len(f.Values) == 0 {
		return 0, 0
	}
	lo, hi = f.Values[0], f.Values[0]
	for _, v := range f.Values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// ToRender returns the field transposed and then flipped on both axes, the
// orientation preview images expect.
func ToRender(f *Field) *Field {
	t := NewField(f.Height, f.Width)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			t.Set(y, x, f.At(x, y))
		}
	}
	out := NewField(t.Width, t.Height)
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			out.Set(x, y, t.At(t.Width-x-1, t.Height-y-1))
		}
	}
	return out
}
