package polars

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromJSON(t *testing.T, mem memory.Allocator, dt arrow.DataType, js string) arrow.Array {
	t.Helper()
	arr, _, err := array.FromJSON(mem, dt, strings.NewReader(js))
	require.NoError(t, err)
	return arr
}

func TestRechunkSingleChunkIsIdentity(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr := fromJSON(t, mem, arrow.PrimitiveTypes.Int64, `[10, 20, 30]`)
	defer arr.Release()
	chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
	defer chunked.Release()

	before := mem.CurrentAlloc()
	out, err := Rechunk(mem, chunked)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, before, mem.CurrentAlloc(), "single chunk must not allocate")
	assert.Same(t, arr.Data().Buffers()[1], out.Data().Buffers()[1])
	assert.True(t, array.Equal(arr, out))
}

func TestRechunkConcatenates(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a := fromJSON(t, mem, arrow.BinaryTypes.String, `["a", null]`)
	b := fromJSON(t, mem, arrow.BinaryTypes.String, `[]`)
	c := fromJSON(t, mem, arrow.BinaryTypes.String, `["c", null, "e"]`)
	want := fromJSON(t, mem, arrow.BinaryTypes.String, `["a", null, "c", null, "e"]`)
	defer want.Release()

	s, err := NewSeries("letters", arrow.BinaryTypes.String, a, b, c)
	require.NoError(t, err)
	a.Release()
	b.Release()
	c.Release()
	defer s.Release()
	assert.Equal(t, 3, s.NumChunks())

	once, err := s.Rechunk(mem)
	require.NoError(t, err)
	defer once.Release()
	require.Equal(t, 1, once.NumChunks())
	assert.Equal(t, "letters", once.Name())
	assert.True(t, array.Equal(want, once.Chunks()[0]))
	assert.Equal(t, 2, once.NullN())

	// 再次合并得到同一个数组
	twice, err := once.Rechunk(mem)
	require.NoError(t, err)
	defer twice.Release()
	assert.Same(t, once.Chunks()[0].Data(), twice.Chunks()[0].Data())
}

func TestRechunkNestedTypes(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	dt := arrow.ListOf(arrow.PrimitiveTypes.Int32)
	a := fromJSON(t, mem, dt, `[[1, 2], null]`)
	b := fromJSON(t, mem, dt, `[[], [3]]`)
	want := fromJSON(t, mem, dt, `[[1, 2], null, [], [3]]`)
	defer want.Release()

	chunked := arrow.NewChunked(dt, []arrow.Array{a, b})
	a.Release()
	b.Release()
	defer chunked.Release()

	out, err := Rechunk(mem, chunked)
	require.NoError(t, err)
	defer out.Release()
	assert.True(t, array.Equal(want, out), "%s != %s", want, out)
}

func TestRechunkEmpty(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, dt := range []arrow.DataType{
		arrow.Null,
		arrow.PrimitiveTypes.Float64,
		arrow.BinaryTypes.LargeString,
		arrow.StructOf(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int8}),
	} {
		t.Run(dt.String(), func(t *testing.T) {
			chunked := arrow.NewChunked(dt, nil)
			defer chunked.Release()

			out, err := Rechunk(mem, chunked)
			require.NoError(t, err)
			defer out.Release()
			assert.Equal(t, 0, out.Len())
			assert.True(t, arrow.TypeEqual(dt, out.DataType()))
		})
	}

	_, err := Rechunk(mem, nil)
	assert.ErrorIs(t, err, ErrNilChunked)
}

func TestNewSeriesRejectsMixedTypes(t *testing.T) {
	a := fromJSON(t, memory.DefaultAllocator, arrow.PrimitiveTypes.Int64, `[1]`)
	defer a.Release()
	b := fromJSON(t, memory.DefaultAllocator, arrow.PrimitiveTypes.Int32, `[1]`)
	defer b.Release()

	_, err := NewSeries("mixed", arrow.PrimitiveTypes.Int64, a, b)
	assert.Error(t, err)
	_, err = NewSeries("nil", nil)
	assert.Error(t, err)
}
