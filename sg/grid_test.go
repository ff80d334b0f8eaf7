package sg_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/RichardScottOZ/GOCAD-SG-Grid-Reader/sg"
)

func testGridHeader(t *testing.T) *sg.GridHeader {
	t.Helper()
	h, err := sg.ParseHeaderString(`GOCAD SGrid 1
NAME small
AXIS_N 3 2 2
AXIS_O 0 0 0
PROPERTY 1 good
PROP_FILE 1 good@@
PROPERTY 2 short
PROP_FILE 2 short@@
PROPERTY 3 missing
PROP_FILE 3 missing@@
PROPERTY 4 text
PROP_FILE 4 text.txt
`)
	require.NoError(t, err)
	return h
}

// fakeDecoder serves canned results keyed by property name.
func fakeDecoder(results map[string]*sg.DecodedProperty) sg.DecodeFunc {
	return func(_ context.Context, desc sg.PropertyDescriptor, expected int) *sg.DecodedProperty {
		if p, ok := results[desc.Name]; ok {
			return p
		}
		return &sg.DecodedProperty{Status: sg.StatusFileMissing, Expected: expected, Err: errors.New("not found")}
	}
}

func cannedResults() map[string]*sg.DecodedProperty {
	return map[string]*sg.DecodedProperty{
		"good":  {Values: sequence(12, 1, 1), Status: sg.StatusOK, Expected: 12, ByteOrder: sg.OrderLittle, ElementWidth: 4},
		"short": {Values: sequence(8, 1, 1), Status: sg.StatusLengthMismatch, Expected: 12, Err: errors.New("short")},
		"text":  {Values: sequence(12, 0.5, 0.5), Status: sg.StatusOK, Expected: 12},
	}
}

func TestAssemble(t *testing.T) {
	h := testGridHeader(t)
	g := sg.Assemble(context.Background(), h, h.Properties, fakeDecoder(cannedResults()))

	require.Equal(t, 4, g.Len())
	require.Equal(t, []string{"good", "short", "missing", "text"}, g.Names())
	require.Equal(t, []string{"good", "text"}, g.Usable())
	require.Equal(t, []string{"short", "missing"}, g.Failed())
	require.Equal(t, [3]int{3, 2, 2}, g.Dims())
	require.Equal(t, "small", g.Header().Name)

	short, ok := g.Property("short")
	require.True(t, ok)
	require.Equal(t, sg.StatusLengthMismatch, short.Status)
	require.Len(t, short.Values, 8)

	missing, ok := g.Property("missing")
	require.True(t, ok)
	require.Equal(t, sg.StatusFileMissing, missing.Status)
	require.Empty(t, missing.Values)

	_, ok = g.Property("absent")
	require.False(t, ok)
}

func TestAssemble_NoUsableProperties(t *testing.T) {
	h := testGridHeader(t)
	g := sg.Assemble(context.Background(), h, h.Properties, fakeDecoder(nil))
	require.Equal(t, 4, g.Len())
	require.Empty(t, g.Usable())
	require.Len(t, g.Failed(), 4)
}

func TestAssemble_NilResult(t *testing.T) {
	h := testGridHeader(t)
	decode := func(context.Context, sg.PropertyDescriptor, int) *sg.DecodedProperty { return nil }
	g := sg.Assemble(context.Background(), h, h.Properties[:1], decode)

	p, ok := g.Property("good")
	require.True(t, ok)
	require.Equal(t, sg.StatusDecodeError, p.Status)
	require.Error(t, p.Err)
	require.Equal(t, 12, p.Expected)
}

func TestAssemble_DuplicateNames(t *testing.T) {
	h := testGridHeader(t)
	descs := []sg.PropertyDescriptor{
		{ID: "1", Name: "rho"},
		{ID: "2", Name: "rho"},
		{ID: "3"},
	}
	g := sg.Assemble(context.Background(), h, descs, fakeDecoder(nil))
	require.Equal(t, []string{"rho", "rho_2", "3"}, g.Names())

	descs = []sg.PropertyDescriptor{
		{ID: "1", Name: "a"},
		{ID: "3", Name: "a_2"},
		{ID: "2", Name: "a"},
	}
	g = sg.Assemble(context.Background(), h, descs, fakeDecoder(nil))
	require.Equal(t, []string{"a", "a_2", "a_2_2"}, g.Names())
	for _, name := range g.Names() {
		_, ok := g.Property(name)
		require.True(t, ok, name)
	}
}

func TestAssemble_ValuesAreCopies(t *testing.T) {
	h := testGridHeader(t)
	results := cannedResults()
	g := sg.Assemble(context.Background(), h, h.Properties, fakeDecoder(results))

	values, ok := g.Values("good")
	require.True(t, ok)
	values[0] = 1000

	p, _ := g.Property("good")
	require.Equal(t, 1.0, p.Values[0])
	p.Values[1] = 2000

	again, _ := g.Values("good")
	require.Equal(t, sequence(12, 1, 1), again)

	names := g.Names()
	names[0] = "changed"
	require.Equal(t, "good", g.Names()[0])

	hdr := g.Header()
	hdr.Properties[0].Name = "changed"
	require.Equal(t, "good", g.Header().Properties[0].Name)
}

func TestAssembleConcurrent_PreservesOrder(t *testing.T) {
	h := testGridHeader(t)
	results := cannedResults()
	var calls atomic.Int32

	// Earlier properties finish last.
	decode := func(ctx context.Context, desc sg.PropertyDescriptor, expected int) *sg.DecodedProperty {
		calls.Add(1)
		delay := map[string]time.Duration{"good": 30, "short": 20, "missing": 10}[desc.Name]
		time.Sleep(delay * time.Millisecond)
		return fakeDecoder(results)(ctx, desc, expected)
	}

	g, err := sg.AssembleConcurrent(context.Background(), h, h.Properties, decode, 4)
	require.NoError(t, err)
	require.EqualValues(t, 4, calls.Load())

	serial := sg.Assemble(context.Background(), h, h.Properties, fakeDecoder(results))
	require.Equal(t, serial.Names(), g.Names())
	if diff := cmp.Diff(serial.Summary(), g.Summary(), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("concurrent summary differs (-serial +concurrent):\n%s", diff)
	}
}

func TestAssembleConcurrent_DefaultWorkers(t *testing.T) {
	h := testGridHeader(t)
	g, err := sg.AssembleConcurrent(context.Background(), h, h.Properties, fakeDecoder(cannedResults()), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"good", "text"}, g.Usable())
}

func TestAssembleConcurrent_Cancelled(t *testing.T) {
	h := testGridHeader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := sg.AssembleConcurrent(ctx, h, h.Properties, fakeDecoder(cannedResults()), 2)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, g)
}
