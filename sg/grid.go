package sg

import (
	"context"
	"errors"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

var errNilDecode = errors.New("decoder returned no result")

// Grid is an assembled structured grid. It is immutable: accessors hand out copies.
type Grid struct {
	header GridHeader
	names  []string
	props  map[string]*DecodedProperty
}

// Assemble decodes every descriptor in order and builds the grid. It never
// fails; a grid without a single good property is still a valid grid.
func Assemble(ctx context.Context, h *GridHeader, descs []PropertyDescriptor, decode DecodeFunc) *Grid {
	expected := h.ExpectedLength()
	results := make([]*DecodedProperty, len(descs))
	for i, d := range descs {
		results[i] = decode(ctx, d, expected)
	}
	return newGrid(h, descs, results)
}

// AssembleConcurrent decodes descriptors on up to workers goroutines. Results are
// merged in declaration order regardless of completion order. The only error is
// ctx's, in which case partial results are discarded.
func AssembleConcurrent(ctx context.Context, h *GridHeader, descs []PropertyDescriptor, decode DecodeFunc, workers int) (*Grid, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	expected := h.ExpectedLength()
	results := make([]*DecodedProperty, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range descs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = decode(gctx, descs[i], expected)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newGrid(h, descs, results), nil
}

func newGrid(h *GridHeader, descs []PropertyDescriptor, results []*DecodedProperty) *Grid {
	g := &Grid{
		header: *h,
		props:  make(map[string]*DecodedProperty, len(results)),
	}
	g.header.Properties = slices.Clone(h.Properties)

	expected := h.ExpectedLength()
	for i, p := range results {
		d := descs[i]
		if p == nil {
			p = &DecodedProperty{Status: StatusDecodeError, Expected: expected, NoData: d.Sentinel(DefaultNoData), Err: errNilDecode}
		}
		name := d.Name
		if name == "" {
			name = d.ID
		}
		name = uniqueName(name, d.ID, func(n string) bool {
			_, dup := g.props[n]
			return dup
		})
		owned := *p
		owned.Name = name
		g.names = append(g.names, name)
		g.props[name] = &owned
	}
	return g
}

// Header returns a copy of the grid header.
func (g *Grid) Header() GridHeader {
	h := g.header
	h.Properties = slices.Clone(g.header.Properties)
	return h
}

// Dims returns nx, ny, nz.
func (g *Grid) Dims() [3]int {
	return g.header.Dims
}

// Names lists properties in declaration order, failed ones included.
func (g *Grid) Names() []string {
	return slices.Clone(g.names)
}

// Len returns the number of properties, failed ones included.
func (g *Grid) Len() int {
	return len(g.names)
}

// Property returns a copy of the named property.
func (g *Grid) Property(name string) (DecodedProperty, bool) {
	p, ok := g.props[name]
	if !ok {
		return DecodedProperty{}, false
	}
	out := *p
	out.Values = slices.Clone(p.Values)
	return out, true
}

// Values returns a copy of the named property's values.
func (g *Grid) Values(name string) ([]float64, bool) {
	p, ok := g.props[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(p.Values), true
}

// Usable lists the properties that decoded to exactly the expected length.
func (g *Grid) Usable() []string {
	var out []string
	for _, n := range g.names {
		if g.props[n].OK() {
			out = append(out, n)
		}
	}
	return out
}

// Failed lists the properties whose status is not OK.
func (g *Grid) Failed() []string {
	var out []string
	for _, n := range g.names {
		if !g.props[n].OK() {
			out = append(out, n)
		}
	}
	return out
}
