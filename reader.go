package gocadsg

import (
	"context"
	"fmt"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/RichardScottOZ/GOCAD-SG-Grid-Reader/sg"
)

// Reader decodes one GOCAD SGrid stored in a blob bucket.
type Reader struct {
	bucket    *blob.Bucket
	ownBucket bool
	key       string
	header    *sg.GridHeader
	opts      Options
	source    *sg.Source
}

// NewReader opens the bucket at bucketURL and parses the header stored under headerKey.
func NewReader(ctx context.Context, bucketURL, headerKey string, opts Options) (*Reader, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	r, err := NewReaderFromBucket(ctx, bucket, headerKey, opts)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	r.ownBucket = true
	return r, nil
}

// Open reads a header from the local filesystem; property files are looked up
// next to it.
func Open(ctx context.Context, path string, opts Options) (*Reader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return NewReader(ctx, "file://"+filepath.ToSlash(filepath.Dir(abs)), filepath.Base(abs), opts)
}

// NewReaderFromBucket parses the header stored under headerKey. The bucket stays
// owned by the caller and is not closed by Close.
func NewReaderFromBucket(ctx context.Context, bucket *blob.Bucket, headerKey string, opts Options) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	reader, err := bucket.NewReader(ctx, headerKey, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("header %s not found: %w", headerKey, err)
		}
		return nil, fmt.Errorf("failed to open header %s: %w", headerKey, err)
	}
	defer reader.Close()

	header, err := sg.ParseHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header %s: %w", headerKey, err)
	}

	opts.Logger = opts.Logger.WithValues("header", headerKey)
	opts.Logger.Info("parsed header",
		"name", header.Name, "dims", header.Dims, "properties", len(header.Properties))

	return &Reader{
		bucket: bucket,
		key:    headerKey,
		header: header,
		opts:   opts,
		source: sg.NewSource(bucket, sg.HeaderDir(headerKey), opts.sourceConfig()),
	}, nil
}

// ReadGrid decodes every declared property and assembles the grid. Property
// failures are recorded in the grid; only cancellation makes it return an error.
func (r *Reader) ReadGrid(ctx context.Context) (*sg.Grid, error) {
	grid, err := sg.AssembleConcurrent(ctx, r.header, r.header.Properties, r.source.Decode, r.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid %s: %w", r.key, err)
	}

	failed := grid.Failed()
	r.opts.Logger.Info("assembled grid",
		"properties", grid.Len(), "usable", grid.Len()-len(failed), "failed", failed)
	return grid, nil
}

// ReadProperty decodes a single property by name.
func (r *Reader) ReadProperty(ctx context.Context, name string) (*sg.DecodedProperty, error) {
	for _, d := range r.header.Properties {
		if d.Name == name {
			return r.source.Decode(ctx, d, r.header.ExpectedLength()), nil
		}
	}
	return nil, fmt.Errorf("property %q not declared in %s", name, r.key)
}

// Header returns the parsed header.
func (r *Reader) Header() *sg.GridHeader {
	return r.header
}

// Key returns the bucket key of the header.
func (r *Reader) Key() string {
	return r.key
}

// Close closes the reader and, if NewReader opened it, the bucket.
func (r *Reader) Close() error {
	if !r.ownBucket {
		return nil
	}
	return r.bucket.Close()
}
