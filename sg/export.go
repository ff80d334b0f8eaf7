package sg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"gocloud.dev/blob"
)

// Exporter consumes an assembled grid.
type Exporter interface {
	Export(ctx context.Context, g *Grid) error
}

// ValueDims returns the lattice shape property values are laid out on: the
// point dimensions, or one less per axis for cell-aligned grids.
func (h *GridHeader) ValueDims() [3]int {
	if !h.CellAligned {
		return h.Dims
	}
	var d [3]int
	for i, n := range h.Dims {
		d[i] = max(n-1, 1)
	}
	return d
}

// Tensor returns the named property as a float64 tensor shaped [nz, ny, nx].
func (g *Grid) Tensor(name string) (*tensors.Tensor, error) {
	p, ok := g.props[name]
	if !ok {
		return nil, fmt.Errorf("property %q not found", name)
	}
	d := g.header.ValueDims()
	if len(p.Values) != d[0]*d[1]*d[2] {
		return nil, fmt.Errorf("property %q has %d values, shape %dx%dx%d needs %d",
			name, len(p.Values), d[2], d[1], d[0], d[0]*d[1]*d[2])
	}
	data := make([]float64, len(p.Values))
	copy(data, p.Values)
	return tensors.FromFlatDataAndDimensions(data, d[2], d[1], d[0]), nil
}

// TensorExporter converts every usable property into a tensor.
type TensorExporter struct {
	Tensors map[string]*tensors.Tensor
}

func (e *TensorExporter) Export(ctx context.Context, g *Grid) error {
	if e.Tensors == nil {
		e.Tensors = make(map[string]*tensors.Tensor)
	}
	for _, name := range g.Usable() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := g.Tensor(name)
		if err != nil {
			return err
		}
		e.Tensors[name] = t
	}
	return nil
}

// VTKExporter writes the grid as a legacy VTK structured points file into a bucket.
type VTKExporter struct {
	Bucket *blob.Bucket
	Key    string
}

func (e *VTKExporter) Export(ctx context.Context, g *Grid) error {
	w, err := e.Bucket.NewWriter(ctx, e.Key, &blob.WriterOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", e.Key, err)
	}
	if err := WriteVTK(w, g); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", e.Key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", e.Key, err)
	}
	return nil
}

// WriteVTK writes the usable properties of g as legacy ASCII VTK. Missing
// samples are written as the property's no-data sentinel.
func WriteVTK(w io.Writer, g *Grid) error {
	h := g.header
	bw := bufio.NewWriter(w)

	title := h.Name
	if title == "" {
		title = "GOCAD SGrid"
	}
	sign := float64(h.AxisSign[2])
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n%s\nASCII\nDATASET STRUCTURED_POINTS\n", title)
	fmt.Fprintf(bw, "DIMENSIONS %d %d %d\n", h.Dims[0], h.Dims[1], h.Dims[2])
	fmt.Fprintf(bw, "ORIGIN %s %s %s\n", ftoa(h.Origin[0]), ftoa(h.Origin[1]), ftoa(h.Origin[2]*sign))
	fmt.Fprintf(bw, "SPACING %s %s %s\n", ftoa(h.Spacing[0]), ftoa(h.Spacing[1]), ftoa(h.Spacing[2]*sign))

	usable := g.Usable()
	if len(usable) > 0 {
		d := h.ValueDims()
		section := "POINT_DATA"
		if h.CellAligned {
			section = "CELL_DATA"
		}
		fmt.Fprintf(bw, "%s %d\n", section, d[0]*d[1]*d[2])
	}
	for _, name := range usable {
		p := g.props[name]
		fmt.Fprintf(bw, "SCALARS %s double 1\nLOOKUP_TABLE default\n", vtkName(name))
		for i, v := range p.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = p.NoData
			}
			bw.WriteString(ftoa(v))
			if i%9 == 8 || i == len(p.Values)-1 {
				bw.WriteByte('\n')
			} else {
				bw.WriteByte(' ')
			}
		}
	}
	return bw.Flush()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func vtkName(s string) string {
	return strings.Join(strings.Fields(s), "_")
}
