package sg

import (
	"math"
	"strconv"
	"strings"
)

// DefaultNoData is the no-data sentinel GOCAD writes when a header does not declare one.
const DefaultNoData = -99999.0

// BinarySuffix marks raw binary property files, e.g. "model_density@@".
const BinarySuffix = "@@"

// Kind is the declared encoding of a property file.
type Kind int

const (
	KindUnknown Kind = iota
	KindASCII
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindASCII:
		return "ascii"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Status is the outcome of decoding one property.
type Status int

const (
	StatusOK Status = iota
	StatusLengthMismatch
	StatusFileMissing
	StatusDecodeError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusLengthMismatch:
		return "length-mismatch"
	case StatusFileMissing:
		return "file-missing"
	case StatusDecodeError:
		return "decode-error"
	default:
		return "unknown"
	}
}

// ByteOrder is the inferred byte order of a binary payload.
type ByteOrder int

const (
	OrderNA ByteOrder = iota
	OrderLittle
	OrderBig
)

func (o ByteOrder) String() string {
	switch o {
	case OrderLittle:
		return "little"
	case OrderBig:
		return "big"
	default:
		return "n/a"
	}
}

// PropertyDescriptor describes one property as declared in the header.
type PropertyDescriptor struct {
	ID   string
	Name string
	// File is the sidecar path relative to the header file.
	File string
	Kind Kind
	// NoData is nil when the header does not declare PROP_NO_DATA_VALUE.
	NoData *float64
	// ElementSize is the declared PROP_ESIZE, 0 if absent.
	ElementSize int
	// Offset is the number of leading bytes to skip in a binary file.
	Offset int
	// Column selects one value per row in multi-column ASCII files; -1 reads every token.
	Column int
	Unit   string
}

// Sentinel returns the no-data value for the property, falling back to def.
func (d PropertyDescriptor) Sentinel(def float64) float64 {
	if d.NoData != nil {
		return *d.NoData
	}
	return def
}

// DecodedProperty is the result of decoding one property file. It is never
// mutated after the decoder returns it.
type DecodedProperty struct {
	Name         string
	Values       []float64
	Status       Status
	ByteOrder    ByteOrder
	ElementWidth int
	Expected     int
	Source       string
	NoData       float64
	Err          error
}

// OK reports whether the property decoded with the expected length.
func (p *DecodedProperty) OK() bool {
	return p.Status == StatusOK
}

// Len returns the number of decoded values.
func (p *DecodedProperty) Len() int {
	return len(p.Values)
}

// isNoData reports whether v is missing: non-finite or equal to the sentinel.
func isNoData(v, sentinel float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v == sentinel
}

// uniqueName returns name if it is free, otherwise name_<id>, adding a counter
// until the result is free as well.
func uniqueName(name, id string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	base := name + "_" + id
	out := base
	for n := 2; taken(out); n++ {
		out = base + "_" + strconv.Itoa(n)
	}
	return out
}

// ResolveKind picks the decoder for a descriptor. A declared kind wins; otherwise
// files carrying the binary suffix are binary and everything else is ASCII.
func ResolveKind(d PropertyDescriptor) Kind {
	if d.Kind != KindUnknown {
		return d.Kind
	}
	if strings.HasSuffix(trimCompression(d.File), BinarySuffix) {
		return KindBinary
	}
	return KindASCII
}
