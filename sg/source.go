package sg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

var errNoFile = errors.New("no property file declared")

// DecodeFunc decodes one property. Implementations must not fail; every problem
// is reported through the returned DecodedProperty.
type DecodeFunc func(ctx context.Context, desc PropertyDescriptor, expected int) *DecodedProperty

// SourceConfig configures how a Source decodes sidecar files.
type SourceConfig struct {
	// SkipLines is the number of header lines at the top of ASCII property files.
	SkipLines    int
	NoData       float64
	MaskNoData   bool
	MaxNonFinite float64
	MinPlausible float64
	Logger       logr.Logger
}

// DefaultSourceConfig mirrors DefaultBinaryOptions and skips three ASCII header lines.
func DefaultSourceConfig() SourceConfig {
	b := DefaultBinaryOptions()
	return SourceConfig{
		SkipLines:    3,
		NoData:       b.NoData,
		MaxNonFinite: b.MaxNonFinite,
		MinPlausible: b.MinPlausible,
		Logger:       logr.Discard(),
	}
}

// Source reads property files that live next to a header in a blob bucket.
type Source struct {
	bucket *blob.Bucket
	base   string
	cfg    SourceConfig
}

// NewSource returns a Source resolving property files relative to base, the
// bucket directory holding the .sg header. The bucket stays owned by the caller.
func NewSource(bucket *blob.Bucket, base string, cfg SourceConfig) *Source {
	return &Source{bucket: bucket, base: base, cfg: cfg}
}

// Decode dispatches to the binary or ASCII decoder. It satisfies DecodeFunc.
func (s *Source) Decode(ctx context.Context, desc PropertyDescriptor, expected int) *DecodedProperty {
	var p *DecodedProperty
	if ResolveKind(desc) == KindBinary {
		p = s.DecodeBinary(ctx, desc, expected)
	} else {
		p = s.DecodeASCII(ctx, desc, s.cfg.SkipLines, expected)
	}
	s.cfg.Logger.V(1).Info("decoded property",
		"name", p.Name, "source", p.Source, "status", p.Status.String(),
		"len", len(p.Values), "expected", expected,
		"order", p.ByteOrder.String(), "width", p.ElementWidth)
	return p
}

// DecodeBinary fetches and decodes a raw binary property file.
func (s *Source) DecodeBinary(ctx context.Context, desc PropertyDescriptor, expected int) *DecodedProperty {
	key := PropertyKey(s.base, desc.File)
	data, failed := s.fetch(ctx, desc, key, expected)
	if failed != nil {
		return failed
	}

	opts := BinaryOptions{
		NoData:       desc.Sentinel(s.cfg.NoData),
		MaskNoData:   s.cfg.MaskNoData,
		MaxNonFinite: s.cfg.MaxNonFinite,
		MinPlausible: s.cfg.MinPlausible,
		ElementSize:  desc.ElementSize,
		Offset:       desc.Offset,
	}
	p := DecodeBinary(data, expected, opts)
	p.Name = desc.Name
	p.Source = key
	return p
}

// DecodeASCII fetches and decodes a whitespace-delimited property file.
func (s *Source) DecodeASCII(ctx context.Context, desc PropertyDescriptor, skip, expected int) *DecodedProperty {
	key := PropertyKey(s.base, desc.File)
	data, failed := s.fetch(ctx, desc, key, expected)
	if failed != nil {
		return failed
	}

	opts := DefaultASCIIOptions()
	opts.Column = desc.Column
	opts.NoData = desc.Sentinel(s.cfg.NoData)
	opts.MaskNoData = s.cfg.MaskNoData
	p := DecodeASCII(bytes.NewReader(data), skip, expected, opts)
	p.Name = desc.Name
	p.Source = key
	return p
}

// fetch reads and decompresses a property object. On failure it returns the
// DecodedProperty describing the failure instead of an error.
func (s *Source) fetch(ctx context.Context, desc PropertyDescriptor, key string, expected int) ([]byte, *DecodedProperty) {
	fail := func(status Status, err error) *DecodedProperty {
		return &DecodedProperty{
			Name:     desc.Name,
			Status:   status,
			Expected: expected,
			Source:   key,
			NoData:   desc.Sentinel(s.cfg.NoData),
			Err:      err,
		}
	}

	if desc.File == "" {
		return nil, fail(StatusFileMissing, errNoFile)
	}

	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fail(StatusFileMissing, fmt.Errorf("property file %s not found: %w", key, err))
		}
		return nil, fail(StatusFileMissing, fmt.Errorf("failed to open property file %s: %w", key, err))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fail(StatusDecodeError, fmt.Errorf("failed to read property file %s: %w", key, err))
	}

	data, err = decompress(key, data)
	if err != nil {
		return nil, fail(StatusDecodeError, err)
	}
	return data, nil
}

// decompress expands sidecars stored with a .zst or .gz suffix.
func decompress(key string, data []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(key, ".zst"):
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer decoder.Close()
		out, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress zstd property %s: %w", key, err)
		}
		return out, nil
	case strings.HasSuffix(key, ".gz"):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to init gzip reader for property %s: %w", key, err)
		}
		out, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip property %s: %w", key, err)
		}
		return out, nil
	default:
		return data, nil
	}
}

func trimCompression(name string) string {
	name = strings.TrimSuffix(name, ".zst")
	return strings.TrimSuffix(name, ".gz")
}
