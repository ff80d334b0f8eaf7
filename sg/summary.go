package sg

import (
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PropertyReport is one row of the grid diagnostic report.
type PropertyReport struct {
	Name      string
	Status    Status
	Expected  int
	Decoded   int
	Valid     int
	Min       float64
	Max       float64
	ByteOrder ByteOrder
	Width     int
	Source    string
	Error     string
}

// Summary reports every property in declaration order. Bounds cover finite
// values other than the no-data sentinel and are NaN when there are none.
func (g *Grid) Summary() []PropertyReport {
	out := make([]PropertyReport, 0, len(g.names))
	for _, n := range g.names {
		p := g.props[n]
		valid := validValues(p.Values, p.NoData)
		r := PropertyReport{
			Name:      n,
			Status:    p.Status,
			Expected:  p.Expected,
			Decoded:   len(p.Values),
			Valid:     len(valid),
			Min:       math.NaN(),
			Max:       math.NaN(),
			ByteOrder: p.ByteOrder,
			Width:     p.ElementWidth,
			Source:    p.Source,
		}
		if len(valid) > 0 {
			r.Min = floats.Min(valid)
			r.Max = floats.Max(valid)
		}
		if p.Err != nil {
			r.Error = p.Err.Error()
		}
		out = append(out, r)
	}
	return out
}

// WriteSummary renders Summary as an aligned table.
func (g *Grid) WriteSummary(w io.Writer) error {
	h := g.header
	if _, err := fmt.Fprintf(w, "grid %q %dx%dx%d (%d values per property)\n",
		h.Name, h.Dims[0], h.Dims[1], h.Dims[2], h.ExpectedLength()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tSTATUS\tDECODED\tEXPECTED\tMIN\tMAX\tENCODING\tERROR")
	for _, r := range g.Summary() {
		enc := "ascii"
		if r.Width != 0 {
			enc = fmt.Sprintf("%s/float%d", r.ByteOrder, r.Width*8)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%g\t%g\t%s\t%s\n",
			r.Name, r.Status, r.Decoded, r.Expected, r.Min, r.Max, enc, r.Error)
	}
	return tw.Flush()
}

// Stats summarises the distribution of one property.
type Stats struct {
	Count  int
	Valid  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
	P25    float64
	P75    float64
}

// Stats computes value statistics over finite, non-sentinel values. Statistics
// of a property without valid values are NaN.
func (g *Grid) Stats(name string) (Stats, error) {
	p, ok := g.props[name]
	if !ok {
		return Stats{}, fmt.Errorf("property %q not found", name)
	}

	valid := validValues(p.Values, p.NoData)
	s := Stats{Count: len(p.Values), Valid: len(valid)}
	if len(valid) == 0 {
		nan := math.NaN()
		s.Min, s.Max, s.Mean, s.Median, s.StdDev, s.P25, s.P75 = nan, nan, nan, nan, nan, nan, nan
		return s, nil
	}

	slices.Sort(valid)
	s.Min = valid[0]
	s.Max = valid[len(valid)-1]
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, valid, nil)
	s.P25 = stat.Quantile(0.25, stat.Empirical, valid, nil)
	s.P75 = stat.Quantile(0.75, stat.Empirical, valid, nil)
	return s, nil
}

// Comparison describes the difference a-b of one property across two grids.
type Comparison struct {
	Total       int
	Valid       int
	MeanDiff    float64
	MinDiff     float64
	MaxAbsDiff  float64
	RMSE        float64
	Correlation float64
}

// Compare diffs the named property of two grids sample by sample, skipping
// positions where either side is missing.
func Compare(a, b *Grid, name string) (Comparison, error) {
	pa, ok := a.props[name]
	if !ok {
		return Comparison{}, fmt.Errorf("property %q not found in first grid", name)
	}
	pb, ok := b.props[name]
	if !ok {
		return Comparison{}, fmt.Errorf("property %q not found in second grid", name)
	}
	if len(pa.Values) != len(pb.Values) {
		return Comparison{}, fmt.Errorf("property %q lengths differ: %d vs %d", name, len(pa.Values), len(pb.Values))
	}

	var xs, ys, diff []float64
	for i := range pa.Values {
		x, y := pa.Values[i], pb.Values[i]
		if isNoData(x, pa.NoData) || isNoData(y, pb.NoData) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
		diff = append(diff, x-y)
	}

	c := Comparison{Total: len(pa.Values), Valid: len(diff)}
	if len(diff) == 0 {
		nan := math.NaN()
		c.MeanDiff, c.MinDiff, c.MaxAbsDiff, c.RMSE, c.Correlation = nan, nan, nan, nan, nan
		return c, nil
	}

	c.MeanDiff = stat.Mean(diff, nil)
	c.MinDiff = floats.Min(diff)
	var sq float64
	for _, d := range diff {
		c.MaxAbsDiff = math.Max(c.MaxAbsDiff, math.Abs(d))
		sq += d * d
	}
	c.RMSE = math.Sqrt(sq / float64(len(diff)))
	c.Correlation = stat.Correlation(xs, ys, nil)
	return c, nil
}

func validValues(values []float64, noData float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !isNoData(v, noData) {
			out = append(out, v)
		}
	}
	return out
}
