package sg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	errEmptyPayload  = errors.New("empty binary payload")
	errNoInterpreter = errors.New("no plausible float32/float64 interpretation")
)

// BinaryOptions tunes byte order and width inference.
type BinaryOptions struct {
	NoData     float64
	MaskNoData bool
	// MaxNonFinite is the largest tolerated fraction of NaN/Inf values.
	MaxNonFinite float64
	// MinPlausible is the smallest tolerated fraction of plausible values.
	MinPlausible float64
	// ElementSize is the declared width; it only breaks ties.
	ElementSize int
	Offset      int
}

// DefaultBinaryOptions returns the thresholds used when a caller has no opinion.
func DefaultBinaryOptions() BinaryOptions {
	return BinaryOptions{
		NoData:       DefaultNoData,
		MaxNonFinite: 0.01,
		MinPlausible: 0.5,
	}
}

const (
	plausibleMin = 1e-30
	plausibleMax = 1e30
)

type candidate struct {
	order     ByteOrder
	width     int
	rank      int
	values    []float64
	plausible float64
	// spread is the deviation of binary exponents over the measured values.
	spread float64
	// trailing counts bytes past the last whole element.
	trailing int
}

// candidateOrder is also the last tie-break: big before little, since GOCAD
// writes @@ files as big-endian IEEE, and 4 before 8.
var candidateOrder = []struct {
	order ByteOrder
	width int
}{
	{OrderBig, 4},
	{OrderLittle, 4},
	{OrderBig, 8},
	{OrderLittle, 8},
}

// DecodeBinary interprets a raw GOCAD property payload. The payload carries no
// byte order or width metadata, so every order/width pair is trial decoded and
// scored; the survivor whose element count best matches expected wins. A payload
// no width divides evenly is decoded up to its last whole element and reported
// as a LengthMismatch. It never fails: problems are reported through the
// returned Status.
func DecodeBinary(data []byte, expected int, opts BinaryOptions) *DecodedProperty {
	p := &DecodedProperty{Expected: expected, NoData: opts.NoData}

	if opts.Offset > 0 {
		if opts.Offset >= len(data) {
			data = nil
		} else {
			data = data[opts.Offset:]
		}
	}
	if len(data) == 0 {
		p.Status = StatusDecodeError
		p.Err = errEmptyPayload
		return p
	}

	cands := binaryCandidates(data, opts, false)
	if len(cands) == 0 {
		cands = binaryCandidates(data, opts, true)
	}
	if len(cands) == 0 {
		p.Status = StatusDecodeError
		p.Err = fmt.Errorf("%w of %d bytes", errNoInterpreter, len(data))
		return p
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if betterCandidate(c, best, expected, opts.ElementSize) {
			best = c
		}
	}

	p.Values = best.values
	p.ByteOrder = best.order
	p.ElementWidth = best.width
	switch {
	case best.trailing > 0:
		p.Status = StatusLengthMismatch
		p.Err = fmt.Errorf("decoded %d values as %s-endian float%d with %d trailing bytes, expected %d",
			len(best.values), best.order, best.width*8, best.trailing, expected)
	case len(best.values) == expected:
		p.Status = StatusOK
	default:
		p.Status = StatusLengthMismatch
		p.Err = fmt.Errorf("decoded %d values as %s-endian float%d, expected %d",
			len(best.values), best.order, best.width*8, expected)
	}

	if opts.MaskNoData {
		for i, v := range p.Values {
			if v == opts.NoData {
				p.Values[i] = math.NaN()
			}
		}
	}
	return p
}

// binaryCandidates returns every order/width interpretation that survives the
// length and plausibility checks. With partial set, widths that do not divide
// the payload are tried on its whole-element prefix.
func binaryCandidates(data []byte, opts BinaryOptions, partial bool) []candidate {
	var out []candidate
	for rank, co := range candidateOrder {
		trailing := len(data) % co.width
		if trailing != 0 && !partial {
			continue
		}
		body := data[:len(data)-trailing]
		if len(body) == 0 {
			continue
		}
		// Identical bytes in both orders decode identically; keep only big.
		if co.order == OrderLittle && palindromic(body, co.width) {
			continue
		}

		values := decodeFloats(body, co.order, co.width)
		nonFinite, plausible := score(values, opts.NoData)
		n := float64(len(values))
		if float64(nonFinite)/n > opts.MaxNonFinite {
			continue
		}
		frac := float64(plausible) / n
		if frac < opts.MinPlausible {
			continue
		}
		out = append(out, candidate{
			order:     co.order,
			width:     co.width,
			rank:      rank,
			values:    values,
			plausible: frac,
			spread:    exponentSpread(values, opts.NoData),
			trailing:  trailing,
		})
	}
	return out
}

// betterCandidate orders candidates by distance to expected, then plausibility,
// then exponent spread, then agreement with the declared element size, then
// candidate rank.
func betterCandidate(a, b candidate, expected, declaredWidth int) bool {
	da, db := absInt(len(a.values)-expected), absInt(len(b.values)-expected)
	if da != db {
		return da < db
	}
	if a.plausible != b.plausible {
		return a.plausible > b.plausible
	}
	if a.spread != b.spread {
		return a.spread < b.spread
	}
	if declaredWidth != 0 {
		am, bm := a.width == declaredWidth, b.width == declaredWidth
		if am != bm {
			return am
		}
	}
	return a.rank < b.rank
}

func decodeFloats(data []byte, order ByteOrder, width int) []float64 {
	var bo binary.ByteOrder = binary.LittleEndian
	if order == OrderBig {
		bo = binary.BigEndian
	}

	n := len(data) / width
	out := make([]float64, n)
	switch width {
	case 4:
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(bo.Uint32(data[i*4:])))
		}
	case 8:
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(bo.Uint64(data[i*8:]))
		}
	}
	return out
}

// score counts non-finite values and values that look like real measurements.
// A wrong byte order turns ordinary magnitudes into denormals or huge exponents.
func score(values []float64, noData float64) (nonFinite, plausible int) {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			nonFinite++
			continue
		}
		a := math.Abs(v)
		if v == noData || v == 0 || (a >= plausibleMin && a <= plausibleMax) {
			plausible++
		}
	}
	return nonFinite, plausible
}

// exponentSpread is the standard deviation of the binary exponents of the
// measured values. A property's samples cluster within a few octaves; a
// byte-swapped reading scatters them across the whole exponent range even when
// every swapped value is individually plausible.
func exponentSpread(values []float64, noData float64) float64 {
	exps := make([]float64, 0, len(values))
	for _, v := range values {
		if v == 0 || isNoData(v, noData) {
			continue
		}
		_, e := math.Frexp(v)
		exps = append(exps, float64(e))
	}
	if len(exps) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(exps, nil)
	return std
}

// palindromic reports whether every element of the given width reads the same
// in both byte orders.
func palindromic(data []byte, width int) bool {
	for off := 0; off+width <= len(data); off += width {
		for i := 0; i < width/2; i++ {
			if data[off+i] != data[off+width-1-i] {
				return false
			}
		}
	}
	return true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
