package sg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingField is matched by header errors caused by an absent AXIS_N or AXIS_O.
	ErrMissingField = errors.New("missing header field")
	// ErrInvalidDimensions is matched by header errors caused by a bad AXIS_N.
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
)

// HeaderErrorKind classifies fatal header failures.
type HeaderErrorKind int

const (
	MissingField HeaderErrorKind = iota
	InvalidDimensions
)

// HeaderError is returned by ParseHeader. No grid can be built without a valid header.
type HeaderError struct {
	Kind  HeaderErrorKind
	Field string
	// Line is the 1-based header line, 0 when the field was never seen.
	Line int
	Err  error
}

func (e *HeaderError) Error() string {
	var msg string
	switch e.Kind {
	case MissingField:
		msg = fmt.Sprintf("missing header field %s", e.Field)
	default:
		msg = fmt.Sprintf("invalid dimensions in %s", e.Field)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HeaderError) Unwrap() []error {
	sentinel := ErrMissingField
	if e.Kind == InvalidDimensions {
		sentinel = ErrInvalidDimensions
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// GridHeader is the parsed content of a .sg file.
type GridHeader struct {
	Name string
	Type string
	// Dims holds nx, ny, nz.
	Dims    [3]int
	Origin  [3]float64
	AxisU   [3]float64
	AxisV   [3]float64
	AxisW   [3]float64
	AxisMin [3]float64
	AxisMax [3]float64
	Spacing [3]float64
	// AxisSign is +1 or -1 per axis; Z flips unless ZPOSITIVE is Elevation.
	AxisSign      [3]int
	ZPositive     string
	CellAligned   bool
	AsciiDataFile string
	Properties    []PropertyDescriptor
}

// PointCount returns nx*ny*nz.
func (h *GridHeader) PointCount() int {
	return h.Dims[0] * h.Dims[1] * h.Dims[2]
}

// ExpectedLength is the number of values every property must decode to.
func (h *GridHeader) ExpectedLength() int {
	if !h.CellAligned {
		return h.PointCount()
	}
	n := 1
	for _, d := range h.Dims {
		n *= max(d-1, 1)
	}
	return n
}

// ParseHeaderString parses header text held in memory.
func ParseHeaderString(s string) (*GridHeader, error) {
	return ParseHeader(strings.NewReader(s))
}

// ParseHeader reads a GOCAD SGrid header. Unknown keywords are ignored.
func ParseHeader(r io.Reader) (*GridHeader, error) {
	h := &GridHeader{AxisSign: [3]int{1, 1, 1}}

	var (
		lineNo              int
		seenN, seenO, seenU bool
		seenMin, seenMax    bool
		inHeaderBlock       bool
	)
	byID := map[string]int{}
	hasFile := map[string]bool{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if inHeaderBlock {
			if strings.HasPrefix(line, "}") {
				inHeaderBlock = false
				continue
			}
			if k, v, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "name") && h.Name == "" {
				h.Name = unquote(strings.TrimSpace(v))
			}
			continue
		}

		parts := splitFields(line)
		if len(parts) == 0 {
			continue
		}
		keyword, args := parts[0], parts[1:]

		switch keyword {
		case "GOCAD":
			h.Type = strings.Join(args, " ")
		case "HEADER":
			inHeaderBlock = !strings.Contains(line, "}")
		case "NAME":
			h.Name = strings.Join(args, " ")
		case "AXIS_N":
			dims, err := parseDims(args)
			if err != nil {
				return nil, &HeaderError{Kind: InvalidDimensions, Field: "AXIS_N", Line: lineNo, Err: err}
			}
			h.Dims = dims
			seenN = true
		case "AXIS_O":
			if v, ok := parseVec3(args); ok {
				h.Origin = v
				seenO = true
			}
		case "AXIS_U":
			if v, ok := parseVec3(args); ok {
				h.AxisU = v
				seenU = true
			}
		case "AXIS_V":
			if v, ok := parseVec3(args); ok {
				h.AxisV = v
			}
		case "AXIS_W":
			if v, ok := parseVec3(args); ok {
				h.AxisW = v
			}
		case "AXIS_MIN":
			if v, ok := parseVec3(args); ok {
				h.AxisMin = v
				seenMin = true
			}
		case "AXIS_MAX":
			if v, ok := parseVec3(args); ok {
				h.AxisMax = v
				seenMax = true
			}
		case "ZPOSITIVE":
			if len(args) > 0 {
				h.ZPositive = args[0]
				if strings.EqualFold(args[0], "Elevation") {
					h.AxisSign[2] = 1
				} else {
					h.AxisSign[2] = -1
				}
			}
		case "PROP_ALIGNMENT":
			if len(args) > 0 {
				h.CellAligned = strings.EqualFold(args[len(args)-1], "CELLS")
			}
		case "ASCII_DATA_FILE":
			if len(args) > 0 {
				h.AsciiDataFile = strings.Join(args, " ")
			}
		case "PROPERTY":
			if len(args) == 0 {
				continue
			}
			name := args[0]
			if len(args) > 1 {
				name = strings.Join(args[1:], " ")
			}
			byID[args[0]] = len(h.Properties)
			h.Properties = append(h.Properties, PropertyDescriptor{ID: args[0], Name: name, Column: -1})
		default:
			if !strings.HasPrefix(keyword, "PROP_") || len(args) < 2 {
				continue
			}
			idx, ok := byID[args[0]]
			if !ok {
				continue
			}
			applyPropKeyword(&h.Properties[idx], keyword, args[1:])
			if keyword == "PROP_FILE" {
				hasFile[args[0]] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if !seenN {
		return nil, &HeaderError{Kind: MissingField, Field: "AXIS_N"}
	}
	if !seenO {
		return nil, &HeaderError{Kind: MissingField, Field: "AXIS_O"}
	}

	h.Spacing = spacing(h, seenU, seenMin && seenMax)

	if h.AsciiDataFile != "" {
		for i := range h.Properties {
			p := &h.Properties[i]
			if hasFile[p.ID] {
				continue
			}
			p.File = h.AsciiDataFile
			p.Kind = KindASCII
			p.Column = 3 + i
		}
	}
	uniqueNames(h.Properties)

	return h, nil
}

func applyPropKeyword(p *PropertyDescriptor, keyword string, vals []string) {
	switch keyword {
	case "PROP_FILE":
		p.File = strings.Join(vals, " ")
	case "PROP_NO_DATA_VALUE":
		if v, err := strconv.ParseFloat(vals[0], 64); err == nil {
			p.NoData = &v
		}
	case "PROP_ESIZE":
		if n, err := strconv.Atoi(vals[0]); err == nil && (n == 4 || n == 8) {
			p.ElementSize = n
		}
	case "PROP_ETYPE":
		if _, width, err := ParseElementType(vals[0], p.ElementSize); err == nil && p.ElementSize == 0 {
			p.ElementSize = width
		}
	case "PROP_FORMAT":
		switch strings.ToUpper(vals[0]) {
		case "RAW":
			p.Kind = KindBinary
		case "ASCII":
			p.Kind = KindASCII
		}
	case "PROP_OFFSET":
		if n, err := strconv.Atoi(vals[0]); err == nil && n >= 0 {
			p.Offset = n
		}
	case "PROP_UNIT", "PROP_ORIGINAL_UNIT":
		if p.Unit == "" {
			p.Unit = vals[0]
		}
	}
}

// ParseElementType maps a PROP_ETYPE/PROP_ESIZE pair to a type name and byte width.
// An esize of 0 means the size was not declared and the IEEE default of 4 applies.
func ParseElementType(etype string, esize int) (string, int, error) {
	switch strings.ToUpper(etype) {
	case "IEEE", "FLOAT":
		switch esize {
		case 0, 4:
			return "float32", 4, nil
		case 8:
			return "float64", 8, nil
		}
		return "", 0, fmt.Errorf("unsupported IEEE element size: %d", esize)
	case "DOUBLE":
		return "float64", 8, nil
	default:
		return "", 0, fmt.Errorf("unsupported element type: %s", etype)
	}
}

func parseDims(args []string) ([3]int, error) {
	var dims [3]int
	if len(args) < 3 {
		return dims, fmt.Errorf("expected 3 axis counts, got %d", len(args))
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return dims, fmt.Errorf("axis count %q is not an integer", args[i])
		}
		if n < 1 {
			return dims, fmt.Errorf("axis count %d must be positive", n)
		}
		dims[i] = n
	}
	return dims, nil
}

func parseVec3(args []string) ([3]float64, bool) {
	var v [3]float64
	if len(args) < 3 {
		return v, false
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return v, false
		}
		v[i] = f
	}
	return v, true
}

func spacing(h *GridHeader, haveVectors, haveRange bool) [3]float64 {
	var s [3]float64
	axes := [3][3]float64{h.AxisU, h.AxisV, h.AxisW}
	for i := range s {
		n := h.Dims[i]
		switch {
		case haveVectors:
			length := math.Sqrt(axes[i][0]*axes[i][0] + axes[i][1]*axes[i][1] + axes[i][2]*axes[i][2])
			if n > 1 {
				length /= float64(n - 1)
			}
			s[i] = length
		case haveRange && n > 1:
			s[i] = (h.AxisMax[i] - h.AxisMin[i]) / float64(n-1)
		default:
			s[i] = 1
		}
	}
	return s
}

func uniqueNames(props []PropertyDescriptor) {
	seen := make(map[string]bool, len(props))
	for i := range props {
		props[i].Name = uniqueName(props[i].Name, props[i].ID, func(n string) bool { return seen[n] })
		seen[props[i].Name] = true
	}
}

// splitFields splits on whitespace, keeping double-quoted runs together and unquoted.
func splitFields(line string) []string {
	var (
		fields  []string
		sb      strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				fields = append(fields, sb.String())
				sb.Reset()
				started = false
			}
		default:
			sb.WriteRune(r)
			started = true
		}
	}
	if started {
		fields = append(fields, sb.String())
	}
	return fields
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
