package gocadsg

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gocloud.dev/blob"
)

// HeaderExt is the file extension of GOCAD SGrid headers.
const HeaderExt = ".sg"

// IsHeaderKey reports whether key names an SGrid header.
func IsHeaderKey(key string) bool {
	return strings.EqualFold(extOf(key), HeaderExt)
}

// ListHeaders returns every header key under prefix, sorted.
func ListHeaders(ctx context.Context, bucket *blob.Bucket, prefix string) ([]string, error) {
	var keys []string
	iter := bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
		}
		if obj.IsDir || !IsHeaderKey(obj.Key) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ExportKey derives an output key from a header key.
// Example: key="models/grid.sg", ext="vtk" -> "models/grid.vtk"
func ExportKey(headerKey, ext string) string {
	return strings.TrimSuffix(headerKey, extOf(headerKey)) + "." + strings.TrimPrefix(ext, ".")
}

func extOf(key string) string {
	slash := strings.LastIndex(key, "/")
	dot := strings.LastIndex(key, ".")
	if dot <= slash {
		return ""
	}
	return key[dot:]
}
