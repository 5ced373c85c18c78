//go:build cgo
// +build cgo

package polars

import (
	"testing"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/cdata"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/memory/mallocator"
	"github.com/machilusZ/cs511-project2/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDescriptors(t *testing.T) (*bridge.ArrowSchema, *bridge.ArrowArray) {
	t.Helper()
	sc, arr := bridge.NewArrowSchema(), bridge.NewArrowArray()
	t.Cleanup(func() {
		bridge.FreeArrowSchema(sc)
		bridge.FreeArrowArray(arr)
	})
	return sc, arr
}

func toCData(sc *bridge.ArrowSchema, arr *bridge.ArrowArray) (*cdata.CArrowSchema, *cdata.CArrowArray) {
	return (*cdata.CArrowSchema)(unsafe.Pointer(sc)), (*cdata.CArrowArray)(unsafe.Pointer(arr))
}

func TestSeriesExchangeRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	df, err := NewDataFrameFromMap(mem, map[string]interface{}{
		"name": []string{"alice", "bob", "carl"},
		"age":  []interface{}{34, nil, 45},
	})
	require.NoError(t, err)
	defer df.Release()

	for _, s := range df.Columns() {
		sc, arr := newDescriptors(t)
		require.NoError(t, ExportSeries(mem, s, true, sc, arr))
		assert.Equal(t, s.Name(), sc.Name())

		back, err := ImportSeries(sc, arr)
		require.NoError(t, err)
		assert.Equal(t, s.Name(), back.Name())
		assert.True(t, array.ChunkedEqual(s.Chunked(), back.Chunked()))
		back.Release()
		assert.True(t, arr.Released())
	}
}

func TestExportSeriesRechunksFirst(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a := fromJSON(t, mem, arrow.PrimitiveTypes.Int64, `[1, 2]`)
	b := fromJSON(t, mem, arrow.PrimitiveTypes.Int64, `[3]`)
	s, err := NewSeries("n", arrow.PrimitiveTypes.Int64, a, b)
	require.NoError(t, err)
	a.Release()
	b.Release()
	defer s.Release()

	sc, arr := newDescriptors(t)
	require.NoError(t, ExportSeriesUnnamed(mem, s, sc, arr))
	assert.Equal(t, "", sc.Name())
	assert.Equal(t, bridge.FlagNullable, sc.Flags()&bridge.FlagNullable)
	assert.EqualValues(t, 3, arr.Length())

	back, err := ImportSeries(sc, arr)
	require.NoError(t, err)
	defer back.Release()
	assert.Equal(t, 1, back.NumChunks())
	assert.True(t, array.ChunkedEqual(s.Chunked(), back.Chunked()))
}

// 用 arrow-go 自带的 cdata 实现作为独立的生产方/消费方，验证 ABI 兼容
func TestInteropWithArrowCData(t *testing.T) {
	alloc := mallocator.NewMallocator()
	defer alloc.AssertSize(t, 0)

	nameBuilder := array.NewStringBuilder(alloc)
	defer nameBuilder.Release()
	nameBuilder.AppendValues([]string{"alice", "bob", "carl"}, nil)
	names := nameBuilder.NewArray()
	defer names.Release()

	t.Run("cdata export, bridge import", func(t *testing.T) {
		sc, arr := newDescriptors(t)
		csc, carr := toCData(sc, arr)
		cdata.ExportArrowArray(names, carr, csc)

		s, err := ImportSeries(sc, arr)
		require.NoError(t, err)
		defer s.Release()
		require.Equal(t, 1, s.NumChunks())
		assert.True(t, array.Equal(names, s.Chunks()[0]))
	})

	t.Run("bridge export, cdata import", func(t *testing.T) {
		s := SeriesFromArray("name", names)
		defer s.Release()

		sc, arr := newDescriptors(t)
		require.NoError(t, ExportSeries(alloc, s, false, sc, arr))

		csc, carr := toCData(sc, arr)
		field, got, err := cdata.ImportCArray(carr, csc)
		require.NoError(t, err)
		defer got.Release()
		assert.Equal(t, "name", field.Name)
		assert.False(t, field.Nullable)
		assert.True(t, array.Equal(names, got))
	})
}

func TestImportSeriesConsumesOnError(t *testing.T) {
	sc, arr := newDescriptors(t)
	dict := array.NewDictionaryBuilder(memory.DefaultAllocator, &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String,
	})
	defer dict.Release()
	require.NoError(t, dict.(*array.BinaryDictionaryBuilder).AppendString("x"))
	d := dict.NewArray()
	defer d.Release()

	csc, carr := toCData(sc, arr)
	cdata.ExportArrowArray(d, carr, csc)

	_, err := ImportSeries(sc, arr)
	assert.ErrorIs(t, err, bridge.ErrUnsupportedType)
	assert.True(t, sc.Released())
	assert.True(t, arr.Released())
}
