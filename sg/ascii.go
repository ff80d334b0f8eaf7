package sg

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ASCIIOptions tunes the text decoder.
type ASCIIOptions struct {
	// Column picks one value per row; -1 treats every token as a value.
	Column int
	// BadValue replaces tokens that do not parse as numbers.
	BadValue   float64
	NoData     float64
	MaskNoData bool
}

// DefaultASCIIOptions reads every token and records unparseable ones as NaN.
func DefaultASCIIOptions() ASCIIOptions {
	return ASCIIOptions{
		Column:   -1,
		BadValue: math.NaN(),
		NoData:   DefaultNoData,
	}
}

// DecodeASCII reads whitespace-delimited numbers after skipping skip header lines.
// Bad tokens never abort the parse; the result is a DecodeError only when fewer
// than half the expected values could be read.
func DecodeASCII(r io.Reader, skip, expected int, opts ASCIIOptions) *DecodedProperty {
	p := &DecodedProperty{Expected: expected, NoData: opts.NoData}

	var (
		values []float64
		parsed int
		lineNo int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		if lineNo <= skip {
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if opts.Column >= 0 {
			if opts.Column >= len(fields) {
				values = append(values, opts.BadValue)
				continue
			}
			fields = fields[opts.Column : opts.Column+1]
		}
		for _, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				values = append(values, opts.BadValue)
				continue
			}
			if opts.MaskNoData && v == opts.NoData {
				v = math.NaN()
			}
			values = append(values, v)
			parsed++
		}
	}
	if err := scanner.Err(); err != nil {
		p.Values = values
		p.Status = StatusDecodeError
		p.Err = fmt.Errorf("failed to read ascii property: %w", err)
		return p
	}

	p.Values = values
	switch {
	case 2*parsed < expected:
		p.Status = StatusDecodeError
		p.Err = fmt.Errorf("parsed %d numeric values, expected %d", parsed, expected)
	case len(values) != expected:
		p.Status = StatusLengthMismatch
		p.Err = fmt.Errorf("read %d values, expected %d", len(values), expected)
	default:
		p.Status = StatusOK
	}
	return p
}
