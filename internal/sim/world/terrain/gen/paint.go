package gen

// Cell is an alpha-map-independent grid position (node grid coordinates).
type Cell struct {
	X int
	Y int
}

// PaintPaths returns a copy of blend with one extra layer for paths. Every
// path node covers a square of widthUnits alpha cells starting at
// node*cellUnits; covered cells get full path weight and lose all others.
func PaintPaths(blend *BlendMap, paths [][]Cell, cellUnits, widthUnits int) *BlendMap {
	if blend == nil {
		return nil
	}
	if cellUnits <= 0 {
		cellUnits = 1
	}
	if widthUnits <= 0 {
		widthUnits = 1
	}
	res := blend.Resolution
	out := NewBlendMap(res, blend.Layers+1)
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			src := (y*res + x) * blend.Layers
			dst := (y*res + x) * out.Layers
			copy(out.Weights[dst:dst+blend.Layers], blend.Weights[src:src+blend.Layers])
		}
	}

	pathLayer := out.Layers - 1
	for _, path := range paths {
		for _, c := range path {
			x0 := c.X * cellUnits
			y0 := c.Y * cellUnits
			x1 := min(x0+widthUnits, res)
			y1 := min(y0+widthUnits, res)
			for y := max(y0, 0); y < y1; y++ {
				for x := max(x0, 0); x < x1; x++ {
					for l := 0; l < pathLayer; l++ {
						out.Set(x, y, l, 0)
					}
					out.Set(x, y, pathLayer, 1)
				}
			}
		}
	}
	return out
}
