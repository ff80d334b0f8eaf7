package sg_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	"github.com/RichardScottOZ/GOCAD-SG-Grid-Reader/sg"
)

func openDirBucket(t *testing.T, dir string) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "file://"+dir)
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func TestSource_DecodeBinaryFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	values := sequence(12, 1, 1)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "grid_rho@@"),
		encodeFloats(t, values, binary.LittleEndian, 4), 0644))

	src := sg.NewSource(openDirBucket(t, tmpDir), "", sg.DefaultSourceConfig())
	desc := sg.PropertyDescriptor{ID: "1", Name: "rho", File: "grid_rho@@", Column: -1}

	p := src.Decode(context.Background(), desc, 12)
	require.Equal(t, sg.StatusOK, p.Status)
	require.Equal(t, "rho", p.Name)
	require.Equal(t, "grid_rho@@", p.Source)
	require.Equal(t, sg.OrderLittle, p.ByteOrder)
	require.Equal(t, values, p.Values)
}

func TestSource_MissingFile(t *testing.T) {
	src := sg.NewSource(openDirBucket(t, t.TempDir()), "", sg.DefaultSourceConfig())

	for _, file := range []string{"absent@@", "absent.txt", ""} {
		desc := sg.PropertyDescriptor{Name: "gone", File: file, Column: -1}
		p := src.Decode(context.Background(), desc, 12)
		require.Equal(t, sg.StatusFileMissing, p.Status, file)
		require.Empty(t, p.Values)
		require.Error(t, p.Err)
		require.Equal(t, 12, p.Expected)
	}
}

func TestSource_Compressed(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	values := sequence(24, 100, -2.5)
	raw := encodeFloats(t, values, binary.BigEndian, 8)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	require.NoError(t, bucket.WriteAll(ctx, "models/grid_rho@@.zst", enc.EncodeAll(raw, nil), nil))
	enc.Close()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err = zw.Write([]byte(asciiRows([]string{"a", "b", "c"}, values)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, bucket.WriteAll(ctx, "models/grid_temp.gz", gz.Bytes(), nil))

	require.NoError(t, bucket.WriteAll(ctx, "models/grid_bad@@.zst", []byte("not zstd"), nil))

	src := sg.NewSource(bucket, "models", sg.DefaultSourceConfig())

	p := src.Decode(ctx, sg.PropertyDescriptor{Name: "rho", File: "grid_rho@@.zst", Column: -1}, 24)
	require.Equal(t, sg.StatusOK, p.Status)
	require.Equal(t, sg.OrderBig, p.ByteOrder)
	require.Equal(t, 8, p.ElementWidth)
	require.Equal(t, values, p.Values)

	p = src.Decode(ctx, sg.PropertyDescriptor{Name: "temp", File: "grid_temp.gz", Column: -1}, 24)
	require.Equal(t, sg.StatusOK, p.Status)
	require.Equal(t, values, p.Values)

	p = src.Decode(ctx, sg.PropertyDescriptor{Name: "bad", File: "grid_bad@@.zst", Column: -1}, 24)
	require.Equal(t, sg.StatusDecodeError, p.Status)
	require.Error(t, p.Err)
}

func TestSource_DeclaredKindWins(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	values := sequence(6, 1, 1)
	require.NoError(t, bucket.WriteAll(ctx, "grid_rho.bin", encodeFloats(t, values, binary.LittleEndian, 4), nil))

	src := sg.NewSource(bucket, "", sg.DefaultSourceConfig())
	p := src.Decode(ctx, sg.PropertyDescriptor{Name: "rho", File: "grid_rho.bin", Kind: sg.KindBinary, Column: -1}, 6)
	require.Equal(t, sg.StatusOK, p.Status)
	require.Equal(t, values, p.Values)
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		desc sg.PropertyDescriptor
		want sg.Kind
	}{
		{sg.PropertyDescriptor{File: "grid_rho@@"}, sg.KindBinary},
		{sg.PropertyDescriptor{File: "grid_rho@@.zst"}, sg.KindBinary},
		{sg.PropertyDescriptor{File: "grid_rho@@.gz"}, sg.KindBinary},
		{sg.PropertyDescriptor{File: "grid_rho.txt"}, sg.KindASCII},
		{sg.PropertyDescriptor{File: "grid_rho"}, sg.KindASCII},
		{sg.PropertyDescriptor{File: "grid_rho@@", Kind: sg.KindASCII}, sg.KindASCII},
		{sg.PropertyDescriptor{File: "grid_rho.raw", Kind: sg.KindBinary}, sg.KindBinary},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sg.ResolveKind(tt.desc), tt.desc.File)
	}
}

func TestPropertyKey(t *testing.T) {
	tests := []struct {
		base, file, want string
	}{
		{"", "grid_rho@@", "grid_rho@@"},
		{"models/sa", "grid_rho@@", "models/sa/grid_rho@@"},
		{"models", `sub\grid_rho@@`, "models/sub/grid_rho@@"},
		{"models", `C:\data\grid_rho@@`, "models/grid_rho@@"},
		{"models", "/abs/grid_rho@@", "models/grid_rho@@"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sg.PropertyKey(tt.base, tt.file), "%s + %s", tt.base, tt.file)
	}
}

func TestHeaderDir(t *testing.T) {
	require.Equal(t, "", sg.HeaderDir("grid.sg"))
	require.Equal(t, "models/sa", sg.HeaderDir("models/sa/grid.sg"))
	require.Equal(t, "models", sg.HeaderDir(`models\grid.sg`))
}
