package sg

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Axis names one of the three lattice directions.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	return [...]string{"x", "y", "z"}[a]
}

// ParseAxis accepts an axis by coordinate (x, y, z), index (i, j, k) or
// GOCAD vector (u, v, w) name, in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "x", "i", "u":
		return AxisX, nil
	case "y", "j", "v":
		return AxisY, nil
	case "z", "k", "w":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("invalid axis: %s, must be x, y or z", s)
}

// Index returns the flat offset of lattice point (i, j, k). GOCAD stores the
// first axis fastest.
func (g *Grid) Index(i, j, k int) int {
	d := g.header.Dims
	return i + d[0]*(j+d[1]*k)
}

// steps returns the world offset of one lattice step along each axis. Axes
// without a vector fall back to the header spacing along the matching
// coordinate axis.
func (g *Grid) steps() [3][3]float64 {
	h := g.header
	axes := [3][3]float64{h.AxisU, h.AxisV, h.AxisW}
	var out [3][3]float64
	for a := 0; a < 3; a++ {
		if axes[a] == ([3]float64{}) {
			out[a][a] = h.Spacing[a]
			continue
		}
		div := 1.0
		if h.Dims[a] > 1 {
			div = float64(h.Dims[a] - 1)
		}
		for c := 0; c < 3; c++ {
			out[a][c] = axes[a][c] / div
		}
	}
	return out
}

// Point returns the world coordinate of lattice point (i, j, k). The Z sign
// convention declared by ZPOSITIVE is applied so depths come out as elevations.
func (g *Grid) Point(i, j, k int) [3]float64 {
	p := g.header.Origin
	idx := [3]int{i, j, k}
	steps := g.steps()
	for a := 0; a < 3; a++ {
		for c := 0; c < 3; c++ {
			p[c] += float64(idx[a]) * steps[a][c]
		}
	}
	p[2] *= float64(g.header.AxisSign[2])
	return p
}

// Locate maps a world coordinate, in the convention Point returns, to the
// nearest lattice point. It reports false for coordinates outside the grid or
// grids whose axes are degenerate.
func (g *Grid) Locate(x, y, z float64) (i, j, k int, ok bool) {
	h := g.header
	w := [3]float64{x, y, z * float64(h.AxisSign[2])}
	var d [3]float64
	for c := range d {
		d[c] = w[c] - h.Origin[c]
	}

	steps := g.steps()
	a := mat.NewDense(3, 3, nil)
	for axis := 0; axis < 3; axis++ {
		for c := 0; c < 3; c++ {
			a.Set(c, axis, steps[axis][c])
		}
	}
	var frac mat.VecDense
	if err := frac.SolveVec(a, mat.NewVecDense(3, d[:])); err != nil {
		return 0, 0, 0, false
	}

	var idx [3]int
	for axis := range idx {
		f := math.Round(frac.AtVec(axis))
		if math.IsNaN(f) || f < 0 || f > float64(h.Dims[axis]-1) {
			return 0, 0, 0, false
		}
		idx[axis] = int(f)
	}
	return idx[0], idx[1], idx[2], true
}

// ValueAt returns the named property's value at the lattice point nearest to
// (x, y, z). The value may be the no-data sentinel.
func (g *Grid) ValueAt(name string, x, y, z float64) (float64, bool) {
	p, ok := g.props[name]
	if !ok || len(p.Values) != g.header.PointCount() {
		return 0, false
	}
	i, j, k, ok := g.Locate(x, y, z)
	if !ok {
		return 0, false
	}
	return p.Values[g.Index(i, j, k)], true
}

// Points returns the coordinates and values of every lattice point whose value
// is at least threshold, in storage order. Missing samples are skipped; pass
// math.Inf(-1) to keep every measured point.
func (g *Grid) Points(name string, threshold float64) ([][3]float64, []float64, error) {
	p, ok := g.props[name]
	if !ok {
		return nil, nil, fmt.Errorf("property %q not found", name)
	}
	d := g.header.Dims
	if len(p.Values) != d[0]*d[1]*d[2] {
		return nil, nil, fmt.Errorf("property %q has %d values, points need %d", name, len(p.Values), d[0]*d[1]*d[2])
	}

	var (
		coords [][3]float64
		values []float64
	)
	for k := 0; k < d[2]; k++ {
		for j := 0; j < d[1]; j++ {
			for i := 0; i < d[0]; i++ {
				v := p.Values[g.Index(i, j, k)]
				if isNoData(v, p.NoData) || v < threshold {
					continue
				}
				coords = append(coords, g.Point(i, j, k))
				values = append(values, v)
			}
		}
	}
	return coords, values, nil
}

// Slice is a 2-D cut through a property, stored row-major: Values[row*Width+col].
// Columns follow the lower remaining axis.
type Slice struct {
	Axis   Axis
	Index  int
	Width  int
	Height int
	Values []float64
}

// Slice extracts the plane at index along axis from the named property.
func (g *Grid) Slice(axis Axis, index int, name string) (Slice, error) {
	p, ok := g.props[name]
	if !ok {
		return Slice{}, fmt.Errorf("property %q not found", name)
	}
	d := g.header.Dims
	if len(p.Values) != d[0]*d[1]*d[2] {
		return Slice{}, fmt.Errorf("property %q has %d values, slicing needs %d", name, len(p.Values), d[0]*d[1]*d[2])
	}
	if axis < AxisX || axis > AxisZ {
		return Slice{}, fmt.Errorf("invalid axis %d", axis)
	}
	if index < 0 || index >= d[axis] {
		return Slice{}, fmt.Errorf("index %d out of range for axis %s (0 to %d)", index, axis, d[axis]-1)
	}

	s := Slice{Axis: axis, Index: index}
	switch axis {
	case AxisX:
		s.Width, s.Height = d[1], d[2]
	case AxisY:
		s.Width, s.Height = d[0], d[2]
	case AxisZ:
		s.Width, s.Height = d[0], d[1]
	}
	s.Values = make([]float64, 0, s.Width*s.Height)
	for row := 0; row < s.Height; row++ {
		for col := 0; col < s.Width; col++ {
			var i, j, k int
			switch axis {
			case AxisX:
				i, j, k = index, col, row
			case AxisY:
				i, j, k = col, index, row
			case AxisZ:
				i, j, k = col, row, index
			}
			s.Values = append(s.Values, p.Values[g.Index(i, j, k)])
		}
	}
	return s, nil
}
